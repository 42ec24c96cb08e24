package model

import "time"

// Reservation lifecycle of one seat within one showtime.  AVAILABLE
// seats carry no holder; HELD seats reference the hold that owns them
// and the hold's expiry; CONFIRMED seats are frozen until the showtime
// passes.  Rows transition between states but are never deleted.
const (
	SeatStateAvailable = "AVAILABLE"
	SeatStateHeld      = "HELD"
	SeatStateConfirmed = "CONFIRMED"
)

// ShowtimeSeat is one row of the authoritative seat-state table, keyed
// by (showtime_id, seat_id).  Rows are materialized lazily the first
// time a showtime's seat map is requested and are mutated exclusively
// through the repository's guarded transition.
//
// Fields:
//  ShowtimeID    – showtime this state belongs to.
//  SeatID        – the physical seat.
//  Status        – AVAILABLE, HELD or CONFIRMED.
//  HoldID        – hold owning the seat while HELD or the hold that
//                  was promoted into the booking while CONFIRMED.
//  HoldExpiresAt – expiry of the owning hold; nil unless HELD.
//  Version       – bumped on every transition; carried on broadcast
//                  events so clients can apply updates last-write-wins.
type ShowtimeSeat struct {
	ShowtimeID    uint64     // showtime_seats.showtime_id
	SeatID        uint64     // showtime_seats.seat_id
	Status        string     // showtime_seats.status
	HoldID        *string    // showtime_seats.hold_id (nullable)
	HoldExpiresAt *time.Time // showtime_seats.hold_expires_at (nullable)
	Version       uint64     // showtime_seats.version
	UpdatedAt     time.Time  // showtime_seats.updated_at
}

// HeldBy reports whether the seat is currently held by the given hold.
func (s *ShowtimeSeat) HeldBy(holdID string) bool {
	return s.Status == SeatStateHeld && s.HoldID != nil && *s.HoldID == holdID
}
