// Package queue defines the message payloads exchanged with the broker
// and the consumer/publisher plumbing around them.
package queue

// BookingConfirmedEvent is published once a booking reaches CONFIRMED.
// It carries enough for downstream consumers (notifications, analytics)
// to act without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID    uint64   `json:"booking_id"`
	BookingCode  string   `json:"booking_code"`
	UserID       uint64   `json:"user_id"`
	ShowtimeID   uint64   `json:"showtime_id"`
	SeatIDs      []uint64 `json:"seat_ids"`
	TicketCodes  []string `json:"ticket_codes"`
	FinalCents   uint32   `json:"final_cents"`
	PointsEarned uint32   `json:"points_earned"`
	ConfirmedAt  string   `json:"confirmed_at"`
}

// PaymentResultMessage is what the payment provider integration drops
// on the payment.result queue.  Status is one of COMPLETED, FAILED or
// TIMEOUT; ProviderTxnID is set only for COMPLETED results.
type PaymentResultMessage struct {
	PaymentRef    string `json:"payment_ref"`
	Status        string `json:"status"`
	ProviderTxnID string `json:"provider_txn_id,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
