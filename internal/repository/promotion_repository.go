package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// PromotionRepo reads promotions for the pricing resolver and performs
// the transactional usage increment on booking confirmation.  Pricing
// previews never write; only ConsumeTx moves the counter.
type PromotionRepo struct {
	db *sql.DB
}

// NewPromotionRepo returns a new PromotionRepo bound to the database.
func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{db: db} }

// GetByCode loads a promotion by its code.  Returns
// ErrPromotionNotFound for unknown codes.
func (r *PromotionRepo) GetByCode(ctx context.Context, code string) (*model.Promotion, error) {
	const q = `SELECT id, code, discount_type, discount_value, starts_at, ends_at,
	                  min_purchase_cents, max_discount_cents, max_usage, max_usage_per_user,
	                  usage_count, applies_to, active
	           FROM promotions WHERE code = ?`
	var p model.Promotion
	err := r.db.QueryRowContext(ctx, q, code).Scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue,
		&p.StartsAt, &p.EndsAt, &p.MinPurchaseCents, &p.MaxDiscountCents, &p.MaxUsage,
		&p.MaxUsagePerUser, &p.UsageCount, &p.AppliesTo, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromotionNotFound
	}
	if err != nil {
		return nil, err
	}
	p.StartsAt = p.StartsAt.UTC()
	p.EndsAt = p.EndsAt.UTC()
	return &p, nil
}

// UserUsageCount returns how many confirmed bookings of this user have
// consumed the promotion.
func (r *PromotionRepo) UserUsageCount(ctx context.Context, promotionID, userID uint64) (uint32, error) {
	var n uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = ? AND user_id = ?`,
		promotionID, userID).Scan(&n)
	return n, err
}

// ConsumeTx increments the global usage counter and records the per-user
// usage inside the confirmation transaction.  The WHERE clause guards
// the global cap, so two confirmations racing for the last slot cannot
// both win; the loser gets ErrPromotionExhausted and the transaction
// rolls back.
func (r *PromotionRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, promotionID, userID, bookingID uint64, discountCents uint32) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE promotions SET usage_count = usage_count + 1
		 WHERE id = ? AND (max_usage = 0 OR usage_count < max_usage)`,
		promotionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPromotionExhausted
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO promotion_usages (promotion_id, user_id, booking_id, discount_cents) VALUES (?, ?, ?, ?)`,
		promotionID, userID, bookingID, discountCents)
	return err
}
