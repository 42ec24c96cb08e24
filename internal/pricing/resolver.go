// Package pricing computes the price breakdown of a booking.  Resolve
// is a pure function of its input: identical inputs always yield the
// identical breakdown, and running it never touches promotion usage
// counters or loyalty balances.  Handlers re-run it on every booking
// update.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

// Sentinel errors surfaced to the API layer.  Promotion problems are
// rejected with the specific reason rather than silently clamped.
var (
	ErrPriceMissing         = errors.New("no price for seat type / ticket type combination")
	ErrAmountTooLarge       = errors.New("amount exceeds the supported maximum")
	ErrInsufficientPoints   = errors.New("points requested exceed balance")
	ErrPromotionInactive    = errors.New("promotion is not active")
	ErrPromotionNotStarted  = errors.New("promotion window has not started")
	ErrPromotionExpired     = errors.New("promotion window has ended")
	ErrPromotionExhausted   = errors.New("promotion usage cap reached")
	ErrPromotionMinPurchase = errors.New("purchase below promotion minimum")
)

// maxAmountCents bounds every monetary component of a booking.  All
// accumulation happens in uint64 and is checked against this ceiling,
// so oversized line items are rejected instead of wrapping uint32.
const maxAmountCents = 100_000_000

// PriceKey addresses one cell of a hall's pricing table.
type PriceKey struct {
	SeatType   string
	TicketType string
}

// Input carries everything Resolve needs.  Callers load the pricing
// table and promotion state up front so that the resolution itself is
// side-effect free.
type Input struct {
	Seats       []model.SeatLine       // ticket type per seat; PriceCents ignored on input
	SeatTypes   map[uint64]string      // seat id -> seat type, from the catalog
	PriceTable  map[PriceKey]uint32    // hall pricing for the showtime's day type
	Concessions []model.ConcessionLine // unit prices already resolved from the catalog

	Promotion      *model.Promotion // nil when no code supplied
	PromotionUsage uint32           // times this user already used the promotion

	PointsRequested uint32 // loyalty points the customer wants to redeem
	PointsBalance   uint32 // current balance
	PointValueCents uint32 // discount value of one point

	TaxPercent uint32    // applied to the discounted amount
	Now        time.Time // pricing instant, for the promotion window
}

// Breakdown is the resolved price of a booking.  Seats mirrors the
// input seat lines with PriceCents populated.
type Breakdown struct {
	Seats               []model.SeatLine
	TicketsCents        uint32
	ConcessionsCents    uint32
	SubtotalCents       uint32
	PromoDiscountCents  uint32
	PointsUsed          uint32
	PointsDiscountCents uint32
	TaxCents            uint32
	FinalCents          uint32
}

// Resolve computes the full breakdown.  Order of application: ticket
// and concession subtotals, promotion discount over the promotion's
// scope, loyalty discount over the remainder, then tax on what is
// left.  The final amount can reach zero but never goes below it.
func Resolve(in Input) (Breakdown, error) {
	out := Breakdown{Seats: make([]model.SeatLine, 0, len(in.Seats))}

	var tickets uint64
	for _, line := range in.Seats {
		seatType, ok := in.SeatTypes[line.SeatID]
		if !ok {
			return Breakdown{}, fmt.Errorf("seat %d: %w", line.SeatID, ErrPriceMissing)
		}
		price, ok := in.PriceTable[PriceKey{SeatType: seatType, TicketType: line.TicketType}]
		if !ok {
			return Breakdown{}, fmt.Errorf("seat %d (%s/%s): %w", line.SeatID, seatType, line.TicketType, ErrPriceMissing)
		}
		line.PriceCents = price
		out.Seats = append(out.Seats, line)
		tickets += uint64(price)
	}
	var concessions uint64
	for _, c := range in.Concessions {
		concessions += uint64(c.UnitPriceCents) * uint64(c.Quantity)
		if concessions > maxAmountCents {
			return Breakdown{}, fmt.Errorf("concession %d: %w", c.ConcessionID, ErrAmountTooLarge)
		}
	}
	subtotal := tickets + concessions
	if subtotal > maxAmountCents {
		return Breakdown{}, ErrAmountTooLarge
	}
	out.TicketsCents = uint32(tickets)
	out.ConcessionsCents = uint32(concessions)
	out.SubtotalCents = uint32(subtotal)

	if in.Promotion != nil {
		d, err := promotionDiscount(in.Promotion, in.PromotionUsage, out.TicketsCents, out.ConcessionsCents, in.Now)
		if err != nil {
			return Breakdown{}, err
		}
		out.PromoDiscountCents = d
	}

	remaining := out.SubtotalCents - out.PromoDiscountCents
	if in.PointsRequested > 0 {
		if in.PointsRequested > in.PointsBalance {
			return Breakdown{}, ErrInsufficientPoints
		}
		used, discount := redeemPoints(in.PointsRequested, in.PointValueCents, remaining)
		out.PointsUsed = used
		out.PointsDiscountCents = discount
		remaining -= discount
	}

	tax := uint64(remaining) * uint64(in.TaxPercent) / 100
	final := uint64(remaining) + tax
	if final > maxAmountCents {
		return Breakdown{}, ErrAmountTooLarge
	}
	out.TaxCents = uint32(tax)
	out.FinalCents = uint32(final)
	return out, nil
}

// promotionDiscount validates the promotion and computes its discount
// over the scoped subtotal.  Every validation failure is returned as a
// distinct sentinel so the client can show the exact reason.
func promotionDiscount(p *model.Promotion, userUsage uint32, ticketsCents, concessionsCents uint32, now time.Time) (uint32, error) {
	if !p.Active {
		return 0, ErrPromotionInactive
	}
	if now.Before(p.StartsAt) {
		return 0, ErrPromotionNotStarted
	}
	if !now.Before(p.EndsAt) {
		return 0, ErrPromotionExpired
	}
	if p.GloballyExhausted() {
		return 0, ErrPromotionExhausted
	}
	if p.MaxUsagePerUser > 0 && userUsage >= p.MaxUsagePerUser {
		return 0, ErrPromotionExhausted
	}

	var scoped uint32
	switch p.AppliesTo {
	case model.PromoScopeTickets:
		scoped = ticketsCents
	case model.PromoScopeConcessions:
		scoped = concessionsCents
	default:
		scoped = ticketsCents + concessionsCents
	}
	if scoped < p.MinPurchaseCents {
		return 0, ErrPromotionMinPurchase
	}

	var d uint64
	switch p.DiscountType {
	case model.DiscountFixed:
		d = uint64(p.DiscountValue)
	default: // PERCENTAGE
		d = uint64(scoped) * uint64(p.DiscountValue) / 100
	}
	if p.MaxDiscountCents > 0 && d > uint64(p.MaxDiscountCents) {
		d = uint64(p.MaxDiscountCents)
	}
	if d > uint64(scoped) {
		d = uint64(scoped)
	}
	return uint32(d), nil
}

// redeemPoints converts the requested points into a discount capped at
// the remaining amount.  Points that would push the total below zero
// are simply not consumed, so the debit on confirmation matches the
// discount actually granted.
func redeemPoints(requested, valueCents, remainingCents uint32) (used, discount uint32) {
	if valueCents == 0 || remainingCents == 0 {
		return 0, 0
	}
	maxUsable := remainingCents / valueCents
	if remainingCents%valueCents != 0 {
		maxUsable++ // a final partial point is allowed, capped below
	}
	used = requested
	if used > maxUsable {
		used = maxUsable
	}
	discount = used * valueCents
	if discount > remainingCents {
		discount = remainingCents
	}
	return used, discount
}
