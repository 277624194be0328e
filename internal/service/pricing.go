package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/models"
)

// quote is the priced breakdown persisted on a booking
type quote struct {
	OriginalAmount int64
	DiscountAmount int64
	PointsSpent    int64
	FinalAmount    int64
	VoucherCode    *string
}

// priceOrder applies the voucher first, then loyalty points (1 point = 1
// currency unit) bounded by the balance and the amount still payable.
func (s *BookingService) priceOrder(ctx context.Context, user *models.User, subtotal, pointsToSpend int64, voucherCode string, now time.Time) (*quote, error) {
	q := &quote{OriginalAmount: subtotal}

	if code := strings.TrimSpace(voucherCode); code != "" {
		voucher, err := s.vouchers.GetByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to get voucher: %w", err)
		}
		if voucher == nil {
			return nil, apperrors.Validation("voucher_code", "voucher %q does not exist", code)
		}

		discount, err := voucherDiscount(voucher, subtotal, now)
		if err != nil {
			return nil, err
		}
		q.DiscountAmount = discount
		q.VoucherCode = &voucher.Code
	}

	payable := subtotal - q.DiscountAmount
	q.PointsSpent = redeemablePoints(user.Points, pointsToSpend, payable)
	q.FinalAmount = max(payable-q.PointsSpent, 0)

	return q, nil
}

func voucherDiscount(v *models.Voucher, subtotal int64, now time.Time) (int64, error) {
	if !v.IsActive {
		return 0, apperrors.Business("voucher %s is not active", v.Code)
	}
	if v.ExpiresAt != nil && !now.Before(*v.ExpiresAt) {
		return 0, apperrors.Business("voucher %s has expired", v.Code)
	}
	if v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit {
		return 0, apperrors.Business("voucher %s has reached its usage limit", v.Code)
	}
	if subtotal < v.MinOrder {
		return 0, apperrors.Business("voucher %s requires a minimum order of %d", v.Code, v.MinOrder)
	}

	var discount int64
	switch v.DiscountType {
	case models.DiscountFixed:
		discount = v.DiscountValue
	case models.DiscountPercent:
		discount = subtotal * v.DiscountValue / 100
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
	default:
		return 0, apperrors.Business("voucher %s has unknown discount type %q", v.Code, v.DiscountType)
	}

	return min(max(discount, 0), subtotal), nil
}

func redeemablePoints(balance, requested, payable int64) int64 {
	if requested <= 0 || payable <= 0 || balance <= 0 {
		return 0
	}
	return min(requested, balance, payable)
}

// pointsEarned is the loyalty credit for a paid amount, rounded down
func pointsEarned(finalAmount, ratePercent int64) int64 {
	if finalAmount <= 0 || ratePercent <= 0 {
		return 0
	}
	return finalAmount * ratePercent / 100
}

func orderSubtotal(seats []models.Seat, combos []models.ComboItem) int64 {
	var total int64
	for _, seat := range seats {
		total += seat.Price
	}
	return total + combosTotal(combos)
}

func combosTotal(combos []models.ComboItem) int64 {
	var total int64
	for _, c := range combos {
		total += c.LineTotal()
	}
	return total
}

func snapshotTotal(seats []models.SeatSnapshot) int64 {
	var total int64
	for _, s := range seats {
		total += s.Price
	}
	return total
}
