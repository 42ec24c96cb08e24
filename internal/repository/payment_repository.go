package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// PaymentRepo persists payment attempts.  The ref is handed to the
// external payment collaborator when the intent is created and echoed
// back in result callbacks; it is the only correlation key trusted from
// the outside.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// NewPaymentRef generates the reference for a payment intent.
func NewPaymentRef() string { return "PAY-" + uuid.NewString() }

// CreateTx inserts a PENDING payment for a booking entering checkout.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (booking_id, ref, amount_cents, method, status) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.BookingID, p.Ref, p.AmountCents, p.Method, p.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByRefTx loads a payment by its collaborator-facing ref inside the
// transaction.  Returns ErrPaymentNotFound for unknown refs.
func (r *PaymentRepo) GetByRefTx(ctx context.Context, tx *sql.Tx, ref string) (*model.Payment, error) {
	const q = `SELECT id, booking_id, ref, amount_cents, method, status, provider_txn_id, created_at, updated_at
	           FROM payments WHERE ref = ?`
	var p model.Payment
	var txn sql.NullString
	err := tx.QueryRowContext(ctx, q, ref).Scan(&p.ID, &p.BookingID, &p.Ref, &p.AmountCents,
		&p.Method, &p.Status, &txn, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if txn.Valid {
		t := txn.String
		p.ProviderTxnID = &t
	}
	return &p, nil
}

// SetStatusTx moves a payment between states with a CAS on the expected
// set, recording the provider transaction ID when present.  Affecting
// zero rows reports false so replayed callbacks become no-ops.
func (r *PaymentRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from []string, to string, providerTxnID *string) (bool, error) {
	q := `UPDATE payments SET status = ?, provider_txn_id = COALESCE(?, provider_txn_id)
	      WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := make([]interface{}, 0, len(from)+3)
	args = append(args, to, nullableStr(providerTxnID), id)
	for _, f := range from {
		args = append(args, f)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
