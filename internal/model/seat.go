package model

import "time"

// Seat types supported by halls.  COUPLE seats occupy a double-width
// cell and are priced separately in the pricing table.
const (
	SeatTypeStandard   = "STANDARD"
	SeatTypeVIP        = "VIP"
	SeatTypeCouple     = "COUPLE"
	SeatTypePremium    = "PREMIUM"
	SeatTypeWheelchair = "WHEELCHAIR"
)

// Operability of a physical seat.  Only ACTIVE seats are materialized
// into a showtime's seat map; BROKEN and MAINTENANCE seats are never
// offered for sale.
const (
	SeatActive      = "ACTIVE"
	SeatBroken      = "BROKEN"
	SeatMaintenance = "MAINTENANCE"
)

// Seat describes a physical seat in a hall.  Seats are uniquely
// identified by their hall, row label and seat number.  The layout is
// immutable once a hall is finalized; this service only ever reads
// seats through the catalog repository.
//
// Fields:
//  ID          – primary key identifier.
//  HallID      – hall to which this seat belongs.
//  RowLabel    – letter or string designating the row.
//  SeatNumber  – number of the seat within the row.
//  SeatType    – STANDARD, VIP, COUPLE, PREMIUM or WHEELCHAIR.
//  Operability – ACTIVE, BROKEN or MAINTENANCE.
type Seat struct {
	ID          uint64    // seats.id
	HallID      uint64    // seats.hall_id
	RowLabel    string    // seats.row_label
	SeatNumber  uint32    // seats.seat_number
	SeatType    string    // seats.seat_type
	Operability string    // seats.operability
	CreatedAt   time.Time // seats.created_at
	UpdatedAt   time.Time // seats.updated_at
}
