// Package broadcast fans seat-state changes out to every client
// watching a showtime's seat map.  Events travel through Redis pub/sub
// (one channel per showtime) into an in-process hub feeding SSE
// subscribers.  Delivery is at-least-once and publishing is
// fire-and-forget: it happens after the seat transition commits and is
// never part of the transition's atomicity guarantee.
package broadcast

import "time"

// Event types emitted on a showtime channel.
const (
	EventSeatHeld      = "seat-held"
	EventSeatReleased  = "seat-released"
	EventSeatConfirmed = "seat-confirmed"
	EventCountdownTick = "hold-countdown-tick"
)

// Event is one seat-map update.  Version is monotonic per showtime
// (unix milliseconds of the publish), so consumers can apply events
// last-write-wins regardless of delivery order.
type Event struct {
	Type             string    `json:"type"`
	ShowtimeID       uint64    `json:"showtime_id"`
	SeatIDs          []uint64  `json:"seat_ids,omitempty"`
	HoldID           string    `json:"hold_id,omitempty"`
	SecondsRemaining int64     `json:"seconds_remaining,omitempty"`
	Version          int64     `json:"version"`
	At               time.Time `json:"at"`
}

// NewEvent stamps the version and timestamp onto an event.
func NewEvent(typ string, showtimeID uint64, seatIDs []uint64, now time.Time) Event {
	return Event{
		Type:       typ,
		ShowtimeID: showtimeID,
		SeatIDs:    seatIDs,
		Version:    now.UnixMilli(),
		At:         now.UTC(),
	}
}
