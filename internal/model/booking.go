package model

import "time"

// Booking lifecycle.  PENDING bookings are backed by an active hold and
// may still be edited; AWAITING_PAYMENT bookings have their price
// locked and a payment attempt in flight.  The three terminal states
// are reached exactly once and never left.
const (
	BookingPending         = "PENDING"
	BookingAwaitingPayment = "AWAITING_PAYMENT"
	BookingConfirmed       = "CONFIRMED"
	BookingCancelled       = "CANCELLED"
	BookingExpired         = "EXPIRED"
)

// Ticket types priced per seat line.
const (
	TicketAdult   = "ADULT"
	TicketChild   = "CHILD"
	TicketStudent = "STUDENT"
	TicketSenior  = "SENIOR"
)

// bookingTransitions is the allowed edge set of the booking state
// machine.  A booking never re-enters PENDING from a terminal state; a
// retry requires a new booking.
var bookingTransitions = map[string][]string{
	BookingPending:         {BookingAwaitingPayment, BookingCancelled, BookingExpired},
	BookingAwaitingPayment: {BookingConfirmed, BookingCancelled, BookingExpired},
}

// CanTransition reports whether the booking state machine permits the
// given edge.
func CanTransition(from, to string) bool {
	for _, t := range bookingTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// BookingTerminal reports whether the status is one of the three
// terminal states.
func BookingTerminal(status string) bool {
	return status == BookingConfirmed || status == BookingCancelled || status == BookingExpired
}

// SeatLine is one seat of a booking together with the ticket type the
// customer selected for it and the resolved price.
type SeatLine struct {
	SeatID     uint64 `json:"seat_id"`
	TicketType string `json:"ticket_type"`
	PriceCents uint32 `json:"price_cents"`
}

// ConcessionLine is one concession item attached to a booking.
type ConcessionLine struct {
	ConcessionID   uint64 `json:"concession_id"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

// Booking is the aggregate root of one checkout attempt.  While
// PENDING, the set of seat IDs in Seats must equal the seat set of the
// backing hold; once CONFIRMED the seats are frozen.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – human-readable booking code, unique.
//  UserID         – customer who owns the booking.
//  ShowtimeID     – showtime being booked.
//  HoldID         – backing hold; the holder guard for confirmation.
//  Seats          – seat + ticket-type lines.
//  Concessions    – concession lines.
//  PromotionCode  – optional promotion applied at pricing time.
//  PointsUsed     – loyalty points the customer chose to redeem.
//  SubtotalCents  – tickets + concessions before discounts.
//  DiscountCents  – promotion plus loyalty discount.
//  TaxCents       – tax on the discounted amount.
//  FinalCents     – amount due.
//  Status         – see the state machine above.
//  ExpiresAt      – mirror of the hold expiry while non-terminal.
type Booking struct {
	ID            uint64           // bookings.id
	Code          string           // bookings.booking_code
	UserID        uint64           // bookings.user_id
	ShowtimeID    uint64           // bookings.showtime_id
	HoldID        string           // bookings.hold_id
	Seats         []SeatLine       // booking_seats rows
	Concessions   []ConcessionLine // booking_concessions rows
	PromotionCode *string          // bookings.promotion_code (nullable)
	PointsUsed    uint32           // bookings.points_used
	SubtotalCents uint32           // bookings.subtotal_cents
	DiscountCents uint32           // bookings.discount_cents
	TaxCents      uint32           // bookings.tax_cents
	FinalCents    uint32           // bookings.final_cents
	Status        string           // bookings.status
	ExpiresAt     time.Time        // bookings.expires_at
	CreatedAt     time.Time        // bookings.created_at
	UpdatedAt     time.Time        // bookings.updated_at
}

// SeatIDs returns the seat IDs of the booking's seat lines in line
// order.
func (b *Booking) SeatIDs() []uint64 {
	ids := make([]uint64, 0, len(b.Seats))
	for _, l := range b.Seats {
		ids = append(ids, l.SeatID)
	}
	return ids
}
