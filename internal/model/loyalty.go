package model

import "time"

// Loyalty ledger entry kinds.  REDEEM debits points on a confirmed
// payment; EARN credits them in the same transaction.  A failed or
// expired booking writes no entries, so the balance is untouched.
const (
	LoyaltyRedeem = "REDEEM"
	LoyaltyEarn   = "EARN"
)

// LoyaltyAccount is a customer's point balance.  Points requested on a
// booking are validated against the balance at pricing time but only
// debited when the booking confirms.
type LoyaltyAccount struct {
	UserID    uint64    // loyalty_accounts.user_id
	Points    uint32    // loyalty_accounts.points
	Tier      string    // loyalty_accounts.tier
	UpdatedAt time.Time // loyalty_accounts.updated_at
}

// LoyaltyEntry is one ledger row recording a point movement tied to a
// booking.
type LoyaltyEntry struct {
	ID        uint64    // loyalty_ledger.id
	UserID    uint64    // loyalty_ledger.user_id
	BookingID uint64    // loyalty_ledger.booking_id
	Kind      string    // loyalty_ledger.kind
	Points    uint32    // loyalty_ledger.points
	CreatedAt time.Time // loyalty_ledger.created_at
}
