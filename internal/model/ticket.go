package model

import "time"

// Ticket lifecycle.  Tickets exist only for confirmed bookings.
const (
	TicketValid     = "VALID"
	TicketUsed      = "USED"
	TicketCancelled = "CANCELLED"
)

// Ticket is one admission document per confirmed seat line.  The code
// is printed on the ticket; the QR payload is what gate scanners
// verify.
type Ticket struct {
	ID        uint64    // tickets.id
	BookingID uint64    // tickets.booking_id
	SeatID    uint64    // tickets.seat_id
	Code      string    // tickets.code
	QRPayload string    // tickets.qr_payload
	Status    string    // tickets.status
	CreatedAt time.Time // tickets.created_at
}
