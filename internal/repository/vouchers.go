package repository

import (
	"context"
	"database/sql"

	"cineledger/internal/database"
	"cineledger/internal/models"
)

type VoucherRepository struct {
	db *database.DB
}

func NewVoucherRepository(db *database.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	voucher := &models.Voucher{}
	query := `
		SELECT code, discount_type, discount_value, max_discount, min_order,
		       usage_limit, used_count, expires_at, is_active
		FROM vouchers
		WHERE code = $1`

	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&voucher.Code,
		&voucher.DiscountType,
		&voucher.DiscountValue,
		&voucher.MaxDiscount,
		&voucher.MinOrder,
		&voucher.UsageLimit,
		&voucher.UsedCount,
		&voucher.ExpiresAt,
		&voucher.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return voucher, nil
}

func (r *VoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	query := `
		INSERT INTO vouchers (code, discount_type, discount_value, max_discount, min_order,
		                      usage_limit, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		voucher.Code,
		voucher.DiscountType,
		voucher.DiscountValue,
		voucher.MaxDiscount,
		voucher.MinOrder,
		voucher.UsageLimit,
		voucher.ExpiresAt,
		voucher.IsActive,
	)
	return err
}

// IncrementUsage consumes one redemption if the limit (0 = unlimited) allows it
func (r *VoucherRepository) IncrementUsage(ctx context.Context, code string) (bool, error) {
	query := `
		UPDATE vouchers
		SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

	return execAffected(ctx, r.db, query, code)
}

func (r *VoucherRepository) DecrementUsage(ctx context.Context, code string) (bool, error) {
	query := `
		UPDATE vouchers
		SET used_count = used_count - 1
		WHERE code = $1 AND used_count > 0`

	return execAffected(ctx, r.db, query, code)
}
