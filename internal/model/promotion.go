package model

import "time"

// Discount types a promotion can carry.
const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

// Scopes a promotion can apply to.  The discount is computed over the
// subtotal of the matching lines only.
const (
	PromoScopeTickets     = "TICKETS"
	PromoScopeConcessions = "CONCESSIONS"
	PromoScopeAll         = "ALL"
)

// Promotion is a discount code with an eligibility window and usage
// caps.  UsageCount is incremented transactionally when a booking
// confirms, never on a price preview, so repeated pricing runs are
// free of side effects.
//
// Fields:
//  Code             – the code customers enter, unique.
//  DiscountType     – PERCENTAGE or FIXED.
//  DiscountValue    – percent for PERCENTAGE, cents for FIXED.
//  StartsAt/EndsAt  – validity window, inclusive start, exclusive end.
//  MinPurchaseCents – minimum scoped subtotal for eligibility.
//  MaxDiscountCents – cap on the computed discount; 0 means uncapped.
//  MaxUsage         – global cap; 0 means unlimited.
//  MaxUsagePerUser  – per-user cap; 0 means unlimited.
//  AppliesTo        – TICKETS, CONCESSIONS or ALL.
type Promotion struct {
	ID               uint64    // promotions.id
	Code             string    // promotions.code
	DiscountType     string    // promotions.discount_type
	DiscountValue    uint32    // promotions.discount_value
	StartsAt         time.Time // promotions.starts_at
	EndsAt           time.Time // promotions.ends_at
	MinPurchaseCents uint32    // promotions.min_purchase_cents
	MaxDiscountCents uint32    // promotions.max_discount_cents
	MaxUsage         uint32    // promotions.max_usage
	MaxUsagePerUser  uint32    // promotions.max_usage_per_user
	UsageCount       uint32    // promotions.usage_count
	AppliesTo        string    // promotions.applies_to
	Active           bool      // promotions.active
}

// GloballyExhausted reports whether the global usage cap is reached.
func (p *Promotion) GloballyExhausted() bool {
	return p.MaxUsage > 0 && p.UsageCount >= p.MaxUsage
}
