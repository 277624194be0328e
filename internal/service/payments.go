package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cineledger/internal/external"
	"cineledger/internal/logger"
	"cineledger/internal/metrics"
	"cineledger/internal/models"
)

// Callback result codes returned to the gateway
const (
	ResultSuccess          = "00"
	ResultAlreadyProcessed = "01"
	ResultFailed           = "02"
	ResultInvalidOrder     = "97"
	ResultNotFound         = "98"
	ResultError            = "99"
)

const orderIDPrefix = "bk"

// NewOrderID builds the gateway correlation string for a booking:
// bk_<booking uuid>_<unix millis>.
func NewOrderID(bookingID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", orderIDPrefix, bookingID, at.UnixMilli())
}

// ParseOrderID extracts the booking id from a correlation string
func ParseOrderID(orderID string) (string, error) {
	parts := strings.Split(orderID, "_")
	if len(parts) != 3 || parts[0] != orderIDPrefix {
		return "", fmt.Errorf("malformed order id %q", orderID)
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return "", fmt.Errorf("malformed booking id in order %q: %w", orderID, err)
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", fmt.Errorf("malformed timestamp in order %q: %w", orderID, err)
	}
	return parts[1], nil
}

// HandlePaymentCallback reconciles a booking with the gateway's verdict.
// Only a verified SUCCESS for the exact final amount completes the booking;
// anything else is a failure. A booking that already reached a terminal
// state is left alone, so replays have no side effects.
func (s *BookingService) HandlePaymentCallback(ctx context.Context, cb *models.PaymentCallback) *models.PaymentCallbackResponse {
	log := logger.WithContext(ctx).With("order_id", cb.OrderID, "payment_id", cb.PaymentID)

	bookingID, err := ParseOrderID(cb.OrderID)
	if err != nil {
		log.Warn("Payment callback with invalid order id", "error", err)
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return &models.PaymentCallbackResponse{ResultCode: ResultInvalidOrder, Message: "invalid order id"}
	}
	log = log.With("booking_id", bookingID)

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		log.Error("Failed to load booking for payment callback", "error", err)
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeError).Inc()
		return &models.PaymentCallbackResponse{ResultCode: ResultError, Message: "internal error"}
	}
	if booking == nil {
		log.Warn("Payment callback for unknown booking")
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return &models.PaymentCallbackResponse{ResultCode: ResultNotFound, Message: "booking not found"}
	}

	verified := s.payment.VerifyCallback(*cb)
	if !verified {
		log.Warn("Payment callback failed verification")
	}

	if verified && cb.Status == external.CallbackStatusSuccess && cb.Amount == booking.FinalAmount {
		return s.completeBooking(ctx, booking, cb)
	}

	reason := "payment_failed"
	switch {
	case !verified:
		reason = "unverified_callback"
	case cb.Status == external.CallbackStatusSuccess:
		reason = "amount_mismatch"
		log.Warn("Payment callback amount differs from booking", "expected", booking.FinalAmount, "actual", cb.Amount)
	}
	return s.failBooking(ctx, booking, reason)
}

func (s *BookingService) completeBooking(ctx context.Context, booking *models.Booking, cb *models.PaymentCallback) *models.PaymentCallbackResponse {
	log := logger.WithContext(ctx).With("booking_id", booking.ID)
	now := s.now()
	earned := pointsEarned(booking.FinalAmount, s.cfg.PointsEarnRatePercent)

	result, err := s.bookings.CompletePayment(ctx, booking, cb.TransactionID, earned, now)
	if err != nil {
		log.Error("Failed to complete booking", "error", err)
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeError).Inc()
		return &models.PaymentCallbackResponse{ResultCode: ResultError, Message: "internal error"}
	}

	if !result.Completed {
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeReplay).Inc()
		if booking.PaymentStatus == models.PaymentCompleted {
			log.Info("Duplicate payment callback ignored")
			return &models.PaymentCallbackResponse{
				ResultCode: ResultAlreadyProcessed,
				Message:    "already processed",
				Invoice:    s.invoice(ctx, booking),
			}
		}
		log.Warn("Payment callback for booking in terminal state", "payment_status", booking.PaymentStatus, "booking_status", booking.BookingStatus)
		return &models.PaymentCallbackResponse{ResultCode: ResultAlreadyProcessed, Message: "booking is no longer payable"}
	}

	if len(result.Missing) > 0 {
		// Paid but the ledger refused these seats; needs a manual refund
		log.Error("Paid booking could not book all seats", "labels", result.Missing)
	}

	if result.PreviousStatus == models.PaymentFailed {
		// The timeout sweep refunded these when it failed the booking
		s.consumeDiscounts(ctx, booking)
	}

	if earned > 0 {
		if _, err := s.users.AdjustPoints(ctx, booking.UserID, earned); err != nil {
			log.Error("Failed to credit loyalty points", "points", earned, "error", err)
		}
	}

	booking.PaymentStatus = models.PaymentCompleted
	booking.PointsEarned = earned
	booking.TransactionID = &cb.TransactionID
	booking.PaidAt = &now

	metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info("Booking paid", "transaction_id", cb.TransactionID, "points_earned", earned)

	s.side.seatsChanged(ctx, booking.ShowtimeID, result.Booked, models.SeatBooked, "payment_completed", now)
	s.side.publish(ctx, models.EventBookingCompleted, models.BookingCompletedEvent{
		BookingID:     booking.ID,
		ShowtimeID:    booking.ShowtimeID,
		UserID:        booking.UserID,
		Seats:         booking.SeatLabels(),
		FinalAmount:   booking.FinalAmount,
		PointsEarned:  earned,
		TransactionID: cb.TransactionID,
		Timestamp:     now,
	})

	return &models.PaymentCallbackResponse{
		ResultCode: ResultSuccess,
		Message:    "success",
		Invoice:    s.invoice(ctx, booking),
	}
}

func (s *BookingService) failBooking(ctx context.Context, booking *models.Booking, reason string) *models.PaymentCallbackResponse {
	log := logger.WithContext(ctx).With("booking_id", booking.ID)

	ok, err := s.bookings.MarkFailed(ctx, booking.ID)
	if err != nil {
		log.Error("Failed to mark booking failed", "error", err)
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeError).Inc()
		return &models.PaymentCallbackResponse{ResultCode: ResultError, Message: "internal error"}
	}
	if !ok {
		metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeReplay).Inc()
		log.Info("Failure callback for booking no longer pending", "payment_status", booking.PaymentStatus, "reason", reason)
		return &models.PaymentCallbackResponse{ResultCode: ResultAlreadyProcessed, Message: "already processed"}
	}

	s.refundDiscounts(ctx, booking)

	// Holds are left to expire. The same user may have another pending
	// booking on these seats that still relies on them.
	now := s.now()
	metrics.PaymentCallbacks.WithLabelValues(metrics.OutcomeFailed).Inc()
	log.Info("Booking payment failed", "reason", reason)

	s.side.publish(ctx, models.EventBookingFailed, models.BookingFailedEvent{
		BookingID:  booking.ID,
		ShowtimeID: booking.ShowtimeID,
		UserID:     booking.UserID,
		Reason:     reason,
		Timestamp:  now,
	})

	return &models.PaymentCallbackResponse{ResultCode: ResultFailed, Message: reason}
}

func (s *BookingService) invoice(ctx context.Context, booking *models.Booking) *models.Invoice {
	inv := &models.Invoice{
		BookingID:      booking.ID,
		ShowtimeID:     booking.ShowtimeID,
		MovieID:        booking.MovieID,
		Seats:          booking.Seats,
		Combos:         booking.Combos,
		OriginalAmount: booking.OriginalAmount,
		DiscountAmount: booking.DiscountAmount,
		PointsSpent:    booking.PointsSpent,
		FinalAmount:    booking.FinalAmount,
		PointsEarned:   booking.PointsEarned,
	}
	if booking.TransactionID != nil {
		inv.TransactionID = *booking.TransactionID
	}
	if booking.PaidAt != nil {
		inv.PaidAt = *booking.PaidAt
	}

	showtime, err := s.showtimes.GetByID(ctx, booking.ShowtimeID)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to load showtime for invoice", "booking_id", booking.ID, "error", err)
	} else if showtime != nil {
		inv.StartTime = showtime.StartTime
	}

	return inv
}
