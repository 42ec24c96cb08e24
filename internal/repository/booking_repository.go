package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// BookingRepo persists the booking aggregate: the bookings row, its
// seat and concession lines and the tickets issued on confirmation.
// Status changes are compare-and-swap updates guarded by the expected
// status, so a booking reaches a terminal state exactly once.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// NewBookingCode builds a human-readable booking code.
func NewBookingCode() string {
	return "BK-" + strings.ToUpper(uuid.NewString()[:8])
}

// CreateTx inserts a booking with its lines and populates the generated
// ID.  The booking must reference an active hold; the handler validates
// that before calling.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (booking_code, user_id, showtime_id, hold_id, promotion_code, points_used,
	            subtotal_cents, discount_cents, tax_cents, final_cents, status, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.Code, b.UserID, b.ShowtimeID, b.HoldID,
		nullableStr(b.PromotionCode), b.PointsUsed,
		b.SubtotalCents, b.DiscountCents, b.TaxCents, b.FinalCents, b.Status,
		b.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if err := r.insertSeatLinesTx(ctx, tx, b.ID, b.Seats); err != nil {
		return err
	}
	return r.insertConcessionLinesTx(ctx, tx, b.ID, b.Concessions)
}

func (r *BookingRepo) insertSeatLinesTx(ctx context.Context, tx *sql.Tx, bookingID uint64, lines []model.SeatLine) error {
	if len(lines) == 0 {
		return nil
	}
	q := `INSERT INTO booking_seats (booking_id, seat_id, ticket_type, price_cents) VALUES `
	args := make([]interface{}, 0, len(lines)*4)
	for i, l := range lines {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?)"
		args = append(args, bookingID, l.SeatID, l.TicketType, l.PriceCents)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func (r *BookingRepo) insertConcessionLinesTx(ctx context.Context, tx *sql.Tx, bookingID uint64, lines []model.ConcessionLine) error {
	if len(lines) == 0 {
		return nil
	}
	q := `INSERT INTO booking_concessions (booking_id, concession_id, quantity, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(lines)*4)
	for i, l := range lines {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?)"
		args = append(args, bookingID, l.ConcessionID, l.Quantity, l.UnitPriceCents)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ReplaceLinesTx rewrites the seat and concession lines of a PENDING
// booking after a re-pricing.  Lines of terminal bookings are frozen;
// the status CAS in UpdatePricingTx enforces that before this runs.
func (r *BookingRepo) ReplaceLinesTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, b.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_concessions WHERE booking_id = ?`, b.ID); err != nil {
		return err
	}
	if err := r.insertSeatLinesTx(ctx, tx, b.ID, b.Seats); err != nil {
		return err
	}
	return r.insertConcessionLinesTx(ctx, tx, b.ID, b.Concessions)
}

// UpdatePricingTx writes the re-resolved amounts onto a booking that is
// still PENDING.  Returns ErrBookingNotPending when the booking left
// PENDING concurrently.
func (r *BookingRepo) UpdatePricingTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `UPDATE bookings
	           SET promotion_code = ?, points_used = ?, subtotal_cents = ?, discount_cents = ?,
	               tax_cents = ?, final_cents = ?
	           WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, nullableStr(b.PromotionCode), b.PointsUsed,
		b.SubtotalCents, b.DiscountCents, b.TaxCents, b.FinalCents, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotPending
	}
	return nil
}

// TransitionStatusTx moves a booking between states with a CAS on the
// expected set.  Returns ErrBookingNotPending when the booking is not
// in any of the expected states, which also makes replayed payment
// callbacks a no-op at this level.
func (r *BookingRepo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from []string, to string) error {
	for _, f := range from {
		if !model.CanTransition(f, to) {
			return ErrBookingNotPending
		}
	}
	q := `UPDATE bookings SET status = ? WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to, id)
	for _, f := range from {
		args = append(args, f)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotPending
	}
	return nil
}

// GetTx loads a booking with its lines inside the transaction.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return r.get(ctx, tx, id)
}

// Get loads a booking with its lines.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.get(ctx, r.db, id)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *BookingRepo) get(ctx context.Context, q querier, id uint64) (*model.Booking, error) {
	const bq = `SELECT id, booking_code, user_id, showtime_id, hold_id, promotion_code, points_used,
	                   subtotal_cents, discount_cents, tax_cents, final_cents, status, expires_at,
	                   created_at, updated_at
	            FROM bookings WHERE id = ?`
	var b model.Booking
	var promo sql.NullString
	err := q.QueryRowContext(ctx, bq, id).Scan(&b.ID, &b.Code, &b.UserID, &b.ShowtimeID, &b.HoldID,
		&promo, &b.PointsUsed, &b.SubtotalCents, &b.DiscountCents, &b.TaxCents, &b.FinalCents,
		&b.Status, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if promo.Valid {
		p := promo.String
		b.PromotionCode = &p
	}
	b.ExpiresAt = b.ExpiresAt.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT seat_id, ticket_type, price_cents FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l model.SeatLine
		if err := rows.Scan(&l.SeatID, &l.TicketType, &l.PriceCents); err != nil {
			return nil, err
		}
		b.Seats = append(b.Seats, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := q.QueryContext(ctx,
		`SELECT concession_id, quantity, unit_price_cents FROM booking_concessions WHERE booking_id = ? ORDER BY concession_id`, id)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var l model.ConcessionLine
		if err := crows.Scan(&l.ConcessionID, &l.Quantity, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		b.Concessions = append(b.Concessions, l)
	}
	return &b, crows.Err()
}

// PendingByHoldTx returns the non-terminal booking backed by the given
// hold, or nil when none exists.  Release and expiry use it to cancel
// the paired booking.
func (r *BookingRepo) PendingByHoldTx(ctx context.Context, tx *sql.Tx, holdID string) (*model.Booking, error) {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM bookings WHERE hold_id = ? AND status IN ('PENDING','AWAITING_PAYMENT') LIMIT 1`,
		holdID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.get(ctx, tx, id)
}

// CreateTicketsTx issues one ticket per confirmed seat line.  Called
// only inside the confirmation transaction.
func (r *BookingRepo) CreateTicketsTx(ctx context.Context, tx *sql.Tx, bookingID uint64, bookingCode string, seats []model.SeatLine) ([]model.Ticket, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	tickets := make([]model.Ticket, 0, len(seats))
	q := `INSERT INTO tickets (booking_id, seat_id, code, qr_payload, status) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, s := range seats {
		code := "TK-" + strings.ToUpper(uuid.NewString()[:12])
		t := model.Ticket{
			BookingID: bookingID,
			SeatID:    s.SeatID,
			Code:      code,
			QRPayload: bookingCode + ":" + code,
			Status:    model.TicketValid,
		}
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?, ?)"
		args = append(args, t.BookingID, t.SeatID, t.Code, t.QRPayload, t.Status)
		tickets = append(tickets, t)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return tickets, nil
}

// TicketCountTx reports how many tickets exist for a booking.  The
// reconciler uses it as the idempotency check against double issuance.
func (r *BookingRepo) TicketCountTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE booking_id = ?`, bookingID).Scan(&n)
	return n, err
}

// BookingSummary is the listing row returned for a user's bookings.
type BookingSummary struct {
	ID         uint64    `json:"id"`
	Code       string    `json:"booking_code"`
	ShowtimeID uint64    `json:"showtime_id"`
	MovieTitle string    `json:"movie_title"`
	StartsAt   time.Time `json:"starts_at"`
	Status     string    `json:"status"`
	FinalCents uint32    `json:"final_cents"`
	SeatLabels []string  `json:"seats"`
}

// ListByUser returns all bookings of a user, newest first, with seat
// labels resolved in a single follow-up query.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingSummary, error) {
	const q = `SELECT b.id, b.booking_code, b.showtime_id, st.movie_title, st.starts_at, b.status, b.final_cents
	           FROM bookings b
	           JOIN showtimes st ON st.id = b.showtime_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]BookingSummary, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var s BookingSummary
		if err := rows.Scan(&s.ID, &s.Code, &s.ShowtimeID, &s.MovieTitle, &s.StartsAt, &s.Status, &s.FinalCents); err != nil {
			return nil, err
		}
		s.SeatLabels = []string{}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]interface{}, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	sq := `SELECT bs.booking_id, CONCAT(s.row_label, s.seat_number)
	       FROM booking_seats bs
	       JOIN seats s ON s.id = bs.seat_id
	       WHERE bs.booking_id IN (` + placeholders(len(ids)) + `)
	       ORDER BY bs.booking_id, s.row_label, s.seat_number`
	srows, err := r.db.QueryContext(ctx, sq, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bid uint64
		var label string
		if err := srows.Scan(&bid, &label); err != nil {
			return nil, err
		}
		if idx, ok := index[bid]; ok {
			out[idx].SeatLabels = append(out[idx].SeatLabels, label)
		}
	}
	return out, srows.Err()
}
