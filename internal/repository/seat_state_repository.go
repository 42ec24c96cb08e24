package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
)

// SeatStateRepo is the authoritative store for per-(showtime, seat)
// reservation state.  TransitionTx is the only mutator: every state
// change in the system — hold, release, expiry, confirmation — goes
// through it, so the expected-state guard is never bypassed.  All
// timestamps are UTC.
type SeatStateRepo struct {
	db *sql.DB
}

// NewSeatStateRepo returns a SeatStateRepo bound to the given database.
func NewSeatStateRepo(db *sql.DB) *SeatStateRepo { return &SeatStateRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *SeatStateRepo) DB() *sql.DB { return r.db }

// MaterializeTx lazily creates the seat-state rows for a showtime from
// the hall's ACTIVE seats.  INSERT IGNORE makes the call idempotent, so
// concurrent first viewers of the same seat map do not conflict.
func (r *SeatStateRepo) MaterializeTx(ctx context.Context, tx *sql.Tx, showtimeID, hallID uint64) error {
	const q = `INSERT IGNORE INTO showtime_seats (showtime_id, seat_id, status, version)
	           SELECT ?, s.id, 'AVAILABLE', 0
	           FROM seats s
	           WHERE s.hall_id = ? AND s.operability = 'ACTIVE'`
	_, err := tx.ExecContext(ctx, q, showtimeID, hallID)
	return err
}

// SeatMapRow is one cell of the seat map returned to clients: the
// physical seat joined with its current state.
type SeatMapRow struct {
	SeatID        uint64     `json:"seat_id"`
	RowLabel      string     `json:"row_label"`
	SeatNumber    uint32     `json:"seat_number"`
	SeatType      string     `json:"seat_type"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	Version       uint64     `json:"version"`
}

// SeatMap returns the ordered seat map of a showtime.  Ordering by row
// label and seat number gives clients a stable grid.
func (r *SeatStateRepo) SeatMap(ctx context.Context, showtimeID uint64) ([]SeatMapRow, error) {
	const q = `SELECT ss.seat_id, s.row_label, s.seat_number, s.seat_type,
	                  ss.status, ss.hold_expires_at, ss.version
	           FROM showtime_seats ss
	           JOIN seats s ON s.id = ss.seat_id
	           WHERE ss.showtime_id = ?
	           ORDER BY s.row_label, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SeatMapRow, 0)
	for rows.Next() {
		var row SeatMapRow
		var exp sql.NullTime
		if err := rows.Scan(&row.SeatID, &row.RowLabel, &row.SeatNumber, &row.SeatType,
			&row.Status, &exp, &row.Version); err != nil {
			return nil, err
		}
		if exp.Valid {
			t := exp.Time.UTC()
			row.HoldExpiresAt = &t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// StatesTx loads the current state rows for the given seats inside the
// transaction.  Used to re-validate a hold before confirmation and to
// name conflicting seats after a failed transition.
func (r *SeatStateRepo) StatesTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]model.ShowtimeSeat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	q := `SELECT showtime_id, seat_id, status, hold_id, hold_expires_at, version, updated_at
	      FROM showtime_seats
	      WHERE showtime_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ShowtimeSeat
	for rows.Next() {
		var st model.ShowtimeSeat
		var holdID sql.NullString
		var exp sql.NullTime
		if err := rows.Scan(&st.ShowtimeID, &st.SeatID, &st.Status, &holdID, &exp, &st.Version, &st.UpdatedAt); err != nil {
			return nil, err
		}
		if holdID.Valid {
			h := holdID.String
			st.HoldID = &h
		}
		if exp.Valid {
			t := exp.Time.UTC()
			st.HoldExpiresAt = &t
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Guard restricts which rows a transition may touch.  Status is
// mandatory; HoldID additionally pins the owner, which release, expiry
// and confirmation use so that a racing reaper and a late confirm can
// never both win the same seat.
type Guard struct {
	Status string
	HoldID *string // nil matches only rows with no holder
	AnyOwn bool    // when true, HoldID is not checked
}

// Target is the state the seats move to.
type Target struct {
	Status        string
	HoldID        *string
	HoldExpiresAt *time.Time
}

// TransitionTx atomically moves every seat in seatIDs from the guarded
// state to the target state.  Either all rows satisfy the guard and all
// move together, or none move and a *SeatConflictError names the seats
// that failed.  The derived available_seats counter on the showtime is
// adjusted in the same transaction.  The caller owns commit/rollback.
func (r *SeatStateRepo) TransitionTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, guard Guard, target Target) error {
	if len(seatIDs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.TxDuration.Observe(time.Since(start).Seconds()) }()

	q := `UPDATE showtime_seats
	      SET status = ?, hold_id = ?, hold_expires_at = ?, version = version + 1
	      WHERE showtime_id = ? AND status = ?`
	args := make([]interface{}, 0, len(seatIDs)+6)
	var expArg interface{}
	if target.HoldExpiresAt != nil {
		expArg = target.HoldExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	args = append(args, target.Status, nullableStr(target.HoldID), expArg, showtimeID, guard.Status)
	if !guard.AnyOwn {
		// Null-safe equality so an AVAILABLE guard (no holder) matches
		// NULL hold_id and a holder guard matches exactly that hold.
		q += ` AND hold_id <=> ?`
		args = append(args, nullableStr(guard.HoldID))
	}
	q += ` AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	for _, id := range seatIDs {
		args = append(args, id)
	}

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(seatIDs)) {
		// Partial match: collect the seats that did not satisfy the
		// guard so the caller can report them, then force a rollback by
		// returning the conflict.  Rows already updated are discarded
		// with the transaction.
		states, serr := r.StatesTx(ctx, tx, showtimeID, seatIDs)
		if serr != nil {
			return serr
		}
		return &SeatConflictError{ShowtimeID: showtimeID, SeatIDs: conflictSet(seatIDs, states, guard, target)}
	}

	if delta := counterDelta(guard.Status, target.Status); delta != 0 {
		const cq = `UPDATE showtimes SET available_seats = available_seats + ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, cq, delta*len(seatIDs), showtimeID); err != nil {
			return err
		}
	}
	return nil
}

// counterDelta maps a transition edge to its effect on the derived
// available_seats cache: leaving AVAILABLE decrements, returning to it
// increments.  HELD -> CONFIRMED is neutral because the decrement
// already happened when the hold was taken.
func counterDelta(from, to string) int {
	switch {
	case from == model.SeatStateAvailable && to != model.SeatStateAvailable:
		return -1
	case from != model.SeatStateAvailable && to == model.SeatStateAvailable:
		return 1
	default:
		return 0
	}
}

// conflictSet returns the seats whose current row fails the guard,
// including seats with no row at all (never materialized).  It reads
// rows after the partial UPDATE ran, so rows the UPDATE itself moved
// now match the target; those were not in contention and are skipped
// rather than reported back to the client.
func conflictSet(requested []uint64, states []model.ShowtimeSeat, guard Guard, target Target) []uint64 {
	byID := make(map[uint64]model.ShowtimeSeat, len(states))
	for _, st := range states {
		byID[st.SeatID] = st
	}
	var out []uint64
	for _, id := range requested {
		st, ok := byID[id]
		if !ok {
			out = append(out, id)
			continue
		}
		if st.Status == target.Status && sameHolder(st.HoldID, target.HoldID) {
			continue
		}
		if st.Status != guard.Status {
			out = append(out, id)
			continue
		}
		if !guard.AnyOwn && !sameHolder(st.HoldID, guard.HoldID) {
			out = append(out, id)
		}
	}
	return out
}

func sameHolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func nullableStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// placeholders builds "?,?,...,?" for an IN clause of n elements.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
