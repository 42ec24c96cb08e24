package model

import "time"

// Payment lifecycle.  REFUND_REQUIRED marks a completed charge whose
// booking could not be confirmed because the hold had already lapsed;
// those payments are escalated to the refund workflow, never silently
// confirmed.
const (
	PaymentPending        = "PENDING"
	PaymentProcessing     = "PROCESSING"
	PaymentCompleted      = "COMPLETED"
	PaymentFailed         = "FAILED"
	PaymentRefundRequired = "REFUND_REQUIRED"
)

// Result categories reported by the external payment collaborator.
// TIMEOUT is surfaced by the collaborator's own deadline and is treated
// like FAILED by reconciliation.
const (
	ResultCompleted = "COMPLETED"
	ResultFailed    = "FAILED"
	ResultTimeout   = "TIMEOUT"
)

// Payment is one attempt to charge a booking.  A booking has at most
// one non-terminal payment at a time.  Ref is the identifier handed to
// the payment collaborator and echoed back in result callbacks.
type Payment struct {
	ID            uint64    // payments.id
	BookingID     uint64    // payments.booking_id
	Ref           string    // payments.ref
	AmountCents   uint32    // payments.amount_cents
	Method        string    // payments.method
	Status        string    // payments.status
	ProviderTxnID *string   // payments.provider_txn_id (nullable)
	CreatedAt     time.Time // payments.created_at
	UpdatedAt     time.Time // payments.updated_at
}
