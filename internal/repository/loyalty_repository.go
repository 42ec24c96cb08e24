package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// LoyaltyRepo manages customer point balances.  Balance reads happen at
// pricing time; debits and credits happen only inside the confirmation
// transaction, so failed or expired bookings leave no net change.
type LoyaltyRepo struct {
	db *sql.DB
}

// NewLoyaltyRepo returns a new LoyaltyRepo bound to the database.
func NewLoyaltyRepo(db *sql.DB) *LoyaltyRepo { return &LoyaltyRepo{db: db} }

// Account returns the user's loyalty account.  Users without a row are
// treated as a zero-balance account rather than an error.
func (r *LoyaltyRepo) Account(ctx context.Context, userID uint64) (*model.LoyaltyAccount, error) {
	const q = `SELECT user_id, points, tier, updated_at FROM loyalty_accounts WHERE user_id = ?`
	var a model.LoyaltyAccount
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&a.UserID, &a.Points, &a.Tier, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.LoyaltyAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DebitTx removes redeemed points inside the confirmation transaction.
// The balance guard in the WHERE clause rejects a debit that would go
// negative, which can happen if the balance shrank between pricing and
// confirmation.
func (r *LoyaltyRepo) DebitTx(ctx context.Context, tx *sql.Tx, userID, bookingID uint64, points uint32) error {
	if points == 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE loyalty_accounts SET points = points - ? WHERE user_id = ? AND points >= ?`,
		points, userID, points)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientPoints
	}
	return r.appendLedgerTx(ctx, tx, userID, bookingID, model.LoyaltyRedeem, points)
}

// CreditTx adds earned points inside the confirmation transaction,
// creating the account row on first earn.
func (r *LoyaltyRepo) CreditTx(ctx context.Context, tx *sql.Tx, userID, bookingID uint64, points uint32) error {
	if points == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loyalty_accounts (user_id, points, tier) VALUES (?, ?, 'STANDARD')
		 ON DUPLICATE KEY UPDATE points = points + VALUES(points)`,
		userID, points)
	if err != nil {
		return err
	}
	return r.appendLedgerTx(ctx, tx, userID, bookingID, model.LoyaltyEarn, points)
}

func (r *LoyaltyRepo) appendLedgerTx(ctx context.Context, tx *sql.Tx, userID, bookingID uint64, kind string, points uint32) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loyalty_ledger (user_id, booking_id, kind, points) VALUES (?, ?, ?, ?)`,
		userID, bookingID, kind, points)
	return err
}
