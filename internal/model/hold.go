package model

import "time"

// Hold lifecycle.  A hold is ACTIVE from creation until it is released,
// reaped or promoted into a confirmed booking.  The terminal status
// records why the hold ended.
const (
	HoldActive    = "ACTIVE"
	HoldReleased  = "RELEASED"  // explicit user release
	HoldExpired   = "EXPIRED"   // reaped or lazily detected past expiry
	HoldConverted = "CONVERTED" // superseded by a confirmed booking
)

// Release reasons accepted by the hold release path.  They map onto the
// terminal hold statuses above.
const (
	ReleaseUserCancelled = "user-cancelled"
	ReleaseExpired       = "expired"
	ReleaseSuperseded    = "superseded-by-confirmation"
)

// Hold is a time-boxed exclusive claim on one or more seats of a
// showtime, owned by a single actor.  All seats in a hold share the
// same expiry; the hold either covers every requested seat or none.
// Seats reference the hold through showtime_seats.hold_id, so the hold
// row itself stores no seat list.
//
// Fields:
//  ID         – uuid assigned at creation, also the holder guard used
//               by seat transitions.
//  ShowtimeID – showtime the seats belong to.
//  UserID     – actor owning the hold.
//  Status     – ACTIVE or a terminal status.
//  ExpiresAt  – instant after which the hold no longer protects seats.
type Hold struct {
	ID         string    // holds.id
	ShowtimeID uint64    // holds.showtime_id
	UserID     uint64    // holds.user_id
	Status     string    // holds.status
	SeatIDs    []uint64  // loaded from showtime_seats, not a column
	CreatedAt  time.Time // holds.created_at
	ExpiresAt  time.Time // holds.expires_at
}

// ExpiredAt reports whether the hold has lapsed at the given instant.
// The predicate is checked lazily on every read and transition; the
// periodic reaper only exists for cleanup.
func (h *Hold) ExpiredAt(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// ActiveAt reports whether the hold still protects its seats.
func (h *Hold) ActiveAt(now time.Time) bool {
	return h.Status == HoldActive && !h.ExpiredAt(now)
}

// RenewedUntil computes the new expiry for a renewal.  Renewal extends
// from now rather than from the original creation time.
func RenewedUntil(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).UTC()
}

// StatusForReason maps a release reason to the terminal hold status.
// Unknown reasons are treated as an explicit user release.
func StatusForReason(reason string) string {
	switch reason {
	case ReleaseExpired:
		return HoldExpired
	case ReleaseSuperseded:
		return HoldConverted
	default:
		return HoldReleased
	}
}
