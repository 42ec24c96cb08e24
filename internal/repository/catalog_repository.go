package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/pricing"
)

// CatalogRepo is the read-only boundary to the catalog collaborator:
// showtime headers, hall seat layouts, the pricing table and the
// concessions menu.  The booking engine never writes through it except
// for the derived available_seats counter maintained by seat
// transitions.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// Showtime loads a showtime header.  Returns ErrShowtimeNotFound for
// unknown IDs.
func (r *CatalogRepo) Showtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, hall_id, movie_title, starts_at, day_type, total_seats, available_seats
	           FROM showtimes WHERE id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.HallID, &st.MovieTitle,
		&st.StartsAt, &st.DayType, &st.TotalSeats, &st.AvailableSeats)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	st.StartsAt = st.StartsAt.UTC()
	return &st, nil
}

// SeatTypes returns seat_id -> seat_type for the given seats, used by
// the pricing resolver to pick the pricing-table row per seat.
func (r *CatalogRepo) SeatTypes(ctx context.Context, seatIDs []uint64) (map[uint64]string, error) {
	if len(seatIDs) == 0 {
		return map[uint64]string{}, nil
	}
	q := `SELECT id, seat_type FROM seats WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs))
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]string, len(seatIDs))
	for rows.Next() {
		var id uint64
		var st string
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		out[id] = st
	}
	return out, rows.Err()
}

// PriceTable loads the hall's pricing for one day type, keyed by seat
// type and ticket type.
func (r *CatalogRepo) PriceTable(ctx context.Context, hallID uint64, dayType string) (map[pricing.PriceKey]uint32, error) {
	const q = `SELECT seat_type, ticket_type, price_cents
	           FROM seat_prices WHERE hall_id = ? AND day_type = ?`
	rows, err := r.db.QueryContext(ctx, q, hallID, dayType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[pricing.PriceKey]uint32)
	for rows.Next() {
		var k pricing.PriceKey
		var cents uint32
		if err := rows.Scan(&k.SeatType, &k.TicketType, &cents); err != nil {
			return nil, err
		}
		out[k] = cents
	}
	return out, rows.Err()
}

// ConcessionPrices returns concession_id -> unit price for the
// requested items.  Unknown IDs are simply absent; the handler treats
// that as a bad request.
func (r *CatalogRepo) ConcessionPrices(ctx context.Context, ids []uint64) (map[uint64]uint32, error) {
	if len(ids) == 0 {
		return map[uint64]uint32{}, nil
	}
	q := `SELECT id, price_cents FROM concessions WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]uint32, len(ids))
	for rows.Next() {
		var id uint64
		var cents uint32
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		out[id] = cents
	}
	return out, rows.Err()
}
