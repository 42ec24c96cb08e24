// Package repository implements the persistence layer on database/sql.
// This file defines the error taxonomy shared by repositories and
// surfaced by handlers.  Sentinels allow errors.Is comparisons; the
// seat conflict carries the contested seat IDs so the UI can re-render
// only the affected cells.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHoldNotFound is returned when a hold ID does not exist.
var ErrHoldNotFound = errors.New("hold not found")

// ErrHoldExpired is returned when an operation requires an active hold
// but the hold has lapsed.  Clients must restart seat selection.
var ErrHoldExpired = errors.New("hold expired")

// ErrBookingNotFound is returned when a booking ID does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBookingNotPending is returned when a mutation is attempted on a
// booking that has left the state the mutation requires.
var ErrBookingNotPending = errors.New("booking is not in a mutable state")

// ErrPaymentNotFound is returned when a payment ref is unknown.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrShowtimeNotFound is returned when a showtime ID does not exist.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrPromotionNotFound is returned for an unknown promotion code.
var ErrPromotionNotFound = errors.New("promotion not found")

// ErrPromotionExhausted is returned when the transactional usage
// increment hits the global cap at confirmation time.
var ErrPromotionExhausted = errors.New("promotion usage cap reached")

// ErrInsufficientPoints is returned when a loyalty debit would take the
// balance below zero.
var ErrInsufficientPoints = errors.New("insufficient loyalty points")

// SeatConflictError reports the exact seats that failed the expected
// state check of a transition.  The whole transition is rolled back, so
// the caller never ends up with a partial hold.
type SeatConflictError struct {
	ShowtimeID uint64
	SeatIDs    []uint64
}

func (e *SeatConflictError) Error() string {
	ids := make([]string, 0, len(e.SeatIDs))
	for _, id := range e.SeatIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("seats unavailable for showtime %d: %s", e.ShowtimeID, strings.Join(ids, ","))
}

// AsSeatConflict unwraps err into a SeatConflictError when possible.
func AsSeatConflict(err error) (*SeatConflictError, bool) {
	var sc *SeatConflictError
	if errors.As(err, &sc) {
		return sc, true
	}
	return nil, false
}
