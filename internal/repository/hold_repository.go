package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// HoldRepo provides data access to the holds table.  A hold is a single
// row; the seats it covers are the showtime_seats rows whose hold_id
// references it.  All expiry comparisons are performed in UTC.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a new HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// NewHoldID generates the uuid used both as the hold's primary key and
// as the holder guard on seat transitions.
func NewHoldID() string { return uuid.NewString() }

// CreateTx inserts a hold row within the provided transaction.  The
// caller must have already moved the seats to HELD with the same hold
// ID through the seat-state transition.
func (r *HoldRepo) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold) error {
	const q = `INSERT INTO holds (id, showtime_id, user_id, status, expires_at)
	           VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, h.ID, h.ShowtimeID, h.UserID, h.Status,
		h.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// GetTx loads a hold and its seat IDs inside the transaction.  Returns
// ErrHoldNotFound when the ID is unknown.
func (r *HoldRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Hold, error) {
	return scanHold(ctx, tx.QueryRowContext(ctx,
		`SELECT id, showtime_id, user_id, status, expires_at, created_at FROM holds WHERE id = ?`, id),
		func(ctx context.Context, holdID string) (*sql.Rows, error) {
			return tx.QueryContext(ctx, `SELECT seat_id FROM showtime_seats WHERE hold_id = ? ORDER BY seat_id`, holdID)
		})
}

// Get is the non-transactional variant of GetTx.
func (r *HoldRepo) Get(ctx context.Context, id string) (*model.Hold, error) {
	return scanHold(ctx, r.db.QueryRowContext(ctx,
		`SELECT id, showtime_id, user_id, status, expires_at, created_at FROM holds WHERE id = ?`, id),
		func(ctx context.Context, holdID string) (*sql.Rows, error) {
			return r.db.QueryContext(ctx, `SELECT seat_id FROM showtime_seats WHERE hold_id = ? ORDER BY seat_id`, holdID)
		})
}

func scanHold(ctx context.Context, row *sql.Row, seatQuery func(context.Context, string) (*sql.Rows, error)) (*model.Hold, error) {
	var h model.Hold
	if err := row.Scan(&h.ID, &h.ShowtimeID, &h.UserID, &h.Status, &h.ExpiresAt, &h.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	h.ExpiresAt = h.ExpiresAt.UTC()
	rows, err := seatQuery(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		h.SeatIDs = append(h.SeatIDs, sid)
	}
	return &h, rows.Err()
}

// ActiveByUserAndShowtimeTx returns the actor's active, unexpired hold
// on a showtime, or nil when none exists.  At most one can exist; the
// hold request path enforces that before creating a new one.  The read
// locks the actor's rows (and, via InnoDB's gap lock, the empty range)
// so two concurrent requests from the same actor serialize here instead
// of both observing "no hold" and both inserting.
func (r *HoldRepo) ActiveByUserAndShowtimeTx(ctx context.Context, tx *sql.Tx, userID, showtimeID uint64, now time.Time) (*model.Hold, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM holds
		 WHERE user_id = ? AND showtime_id = ? AND status = 'ACTIVE' AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`,
		userID, showtimeID, now.UTC().Format("2006-01-02 15:04:05")).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetTx(ctx, tx, id)
}

// RenewTx extends an active, unexpired hold to the new expiry and
// mirrors the expiry onto its seat rows.  Returns ErrHoldNotFound for
// an unknown ID and ErrHoldExpired when the hold is no longer active.
func (r *HoldRepo) RenewTx(ctx context.Context, tx *sql.Tx, id string, now, newExpiry time.Time) error {
	nowStr := now.UTC().Format("2006-01-02 15:04:05")
	expStr := newExpiry.UTC().Format("2006-01-02 15:04:05")
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET expires_at = ? WHERE id = ? AND status = 'ACTIVE' AND expires_at > ?`,
		expStr, id, nowStr)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing from lapsed for the error taxonomy.
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM holds WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHoldNotFound
		}
		if err != nil {
			return err
		}
		return ErrHoldExpired
	}
	_, err = tx.ExecContext(ctx, `UPDATE showtime_seats SET hold_expires_at = ? WHERE hold_id = ?`, expStr, id)
	return err
}

// MarkTerminalTx moves an ACTIVE hold to the given terminal status.
// The guard on status makes release idempotent: a second release, or a
// release racing the reaper, affects zero rows and reports false.
func (r *HoldRepo) MarkTerminalTx(ctx context.Context, tx *sql.Tx, id, terminal string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET status = ? WHERE id = ? AND status = 'ACTIVE'`, terminal, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExpiredTx lists ACTIVE holds past their expiry, oldest first, for the
// reaper.  The reaper still releases each one through the guarded
// seat transition; this query only selects candidates.
func (r *HoldRepo) ExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.Hold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, showtime_id, user_id, status, expires_at, created_at
		 FROM holds
		 WHERE status = 'ACTIVE' AND expires_at <= ?
		 ORDER BY expires_at ASC LIMIT ?`,
		now.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.ID, &h.ShowtimeID, &h.UserID, &h.Status, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.ExpiresAt = h.ExpiresAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// ActiveHolds lists all active holds with their seat IDs, used by the
// countdown tick task to broadcast remaining seconds per showtime.
func (r *HoldRepo) ActiveHolds(ctx context.Context, now time.Time) ([]model.Hold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, showtime_id, user_id, status, expires_at, created_at
		 FROM holds WHERE status = 'ACTIVE' AND expires_at > ?`,
		now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.ID, &h.ShowtimeID, &h.UserID, &h.Status, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.ExpiresAt = h.ExpiresAt.UTC()
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachSeatIDs(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSeatIDs batch-loads the seat IDs of the given holds so events
// built from them carry the same seat sets as single-hold reads.
func (r *HoldRepo) attachSeatIDs(ctx context.Context, holds []model.Hold) error {
	if len(holds) == 0 {
		return nil
	}
	byID := make(map[string]*model.Hold, len(holds))
	args := make([]interface{}, 0, len(holds))
	for i := range holds {
		byID[holds[i].ID] = &holds[i]
		args = append(args, holds[i].ID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT hold_id, seat_id FROM showtime_seats
		 WHERE hold_id IN (`+placeholders(len(holds))+`) ORDER BY seat_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var holdID string
		var seatID uint64
		if err := rows.Scan(&holdID, &seatID); err != nil {
			return err
		}
		if h, ok := byID[holdID]; ok {
			h.SeatIDs = append(h.SeatIDs, seatID)
		}
	}
	return rows.Err()
}
