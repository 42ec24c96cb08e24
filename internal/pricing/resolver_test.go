package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

var pricingNow = time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)

func standardTable() map[PriceKey]uint32 {
	return map[PriceKey]uint32{
		{SeatType: model.SeatTypeStandard, TicketType: model.TicketAdult}: 10000,
		{SeatType: model.SeatTypeStandard, TicketType: model.TicketChild}: 7000,
		{SeatType: model.SeatTypeVIP, TicketType: model.TicketAdult}:      15000,
	}
}

func TestResolveBasicBreakdown(t *testing.T) {
	in := Input{
		Seats: []model.SeatLine{
			{SeatID: 1, TicketType: model.TicketAdult},
			{SeatID: 2, TicketType: model.TicketAdult},
			{SeatID: 3, TicketType: model.TicketAdult},
		},
		SeatTypes: map[uint64]string{
			1: model.SeatTypeStandard,
			2: model.SeatTypeStandard,
			3: model.SeatTypeVIP,
		},
		PriceTable: standardTable(),
		Concessions: []model.ConcessionLine{
			{ConcessionID: 7, Quantity: 2, UnitPriceCents: 5000},
		},
		TaxPercent: 10,
		Now:        pricingNow,
	}

	out, err := Resolve(in)
	require.NoError(t, err)

	assert.Equal(t, uint32(35000), out.TicketsCents)
	assert.Equal(t, uint32(10000), out.ConcessionsCents)
	assert.Equal(t, uint32(45000), out.SubtotalCents)
	assert.Equal(t, uint32(4500), out.TaxCents)
	assert.Equal(t, uint32(49500), out.FinalCents)
	require.Len(t, out.Seats, 3)
	assert.Equal(t, uint32(15000), out.Seats[2].PriceCents)
}

func TestResolveIsDeterministic(t *testing.T) {
	in := Input{
		Seats:      []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
		SeatTypes:  map[uint64]string{1: model.SeatTypeStandard},
		PriceTable: standardTable(),
		TaxPercent: 8,
		Now:        pricingNow,
	}
	first, err := Resolve(in)
	require.NoError(t, err)
	second, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveRejectsOversizedConcessionLine(t *testing.T) {
	// 858994 * 5000 wraps uint32 to a few thousand cents; the resolver
	// must reject the line instead of pricing the order near zero.
	in := Input{
		Seats:      []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
		SeatTypes:  map[uint64]string{1: model.SeatTypeStandard},
		PriceTable: standardTable(),
		Concessions: []model.ConcessionLine{
			{ConcessionID: 7, Quantity: 858994, UnitPriceCents: 5000},
		},
		Now: pricingNow,
	}
	_, err := Resolve(in)
	require.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestResolveRejectsOversizedSubtotal(t *testing.T) {
	// Each line stays under the ceiling but their sum does not.
	in := Input{
		Concessions: []model.ConcessionLine{
			{ConcessionID: 1, Quantity: 100, UnitPriceCents: 900_000},
			{ConcessionID: 2, Quantity: 100, UnitPriceCents: 900_000},
		},
		Now: pricingNow,
	}
	_, err := Resolve(in)
	require.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestResolveLargeOrderBelowCeiling(t *testing.T) {
	in := Input{
		Seats:      []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
		SeatTypes:  map[uint64]string{1: model.SeatTypeStandard},
		PriceTable: standardTable(),
		Concessions: []model.ConcessionLine{
			{ConcessionID: 7, Quantity: 1000, UnitPriceCents: 5000},
		},
		TaxPercent: 10,
		Now:        pricingNow,
	}
	out, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, uint32(5_000_000), out.ConcessionsCents)
	assert.Equal(t, uint32(5_010_000), out.SubtotalCents)
	assert.Equal(t, uint32(5_511_000), out.FinalCents)
}

func TestResolveMissingPrice(t *testing.T) {
	in := Input{
		Seats:      []model.SeatLine{{SeatID: 1, TicketType: model.TicketSenior}},
		SeatTypes:  map[uint64]string{1: model.SeatTypeStandard},
		PriceTable: standardTable(),
		Now:        pricingNow,
	}
	_, err := Resolve(in)
	assert.ErrorIs(t, err, ErrPriceMissing)
}

func TestResolvePercentagePromotion(t *testing.T) {
	promo := &model.Promotion{
		Code:             "TET2026",
		DiscountType:     model.DiscountPercentage,
		DiscountValue:    15,
		StartsAt:         pricingNow.Add(-24 * time.Hour),
		EndsAt:           pricingNow.Add(24 * time.Hour),
		MaxDiscountCents: 70000,
		AppliesTo:        model.PromoScopeAll,
		Active:           true,
	}

	t.Run("below cap", func(t *testing.T) {
		out, err := Resolve(Input{
			Seats: []model.SeatLine{
				{SeatID: 1, TicketType: model.TicketAdult},
				{SeatID: 2, TicketType: model.TicketAdult},
			},
			SeatTypes:  map[uint64]string{1: model.SeatTypeVIP, 2: model.SeatTypeVIP},
			PriceTable: map[PriceKey]uint32{{SeatType: model.SeatTypeVIP, TicketType: model.TicketAdult}: 160000},
			Promotion:  promo,
			Now:        pricingNow,
		})
		require.NoError(t, err)
		// 15% of 320000 is 48000, inside the 70000 cap.
		assert.Equal(t, uint32(48000), out.PromoDiscountCents)
		assert.Equal(t, uint32(272000), out.FinalCents)
	})

	t.Run("cap binds", func(t *testing.T) {
		capped := *promo
		capped.DiscountValue = 30
		out, err := Resolve(Input{
			Seats: []model.SeatLine{
				{SeatID: 1, TicketType: model.TicketAdult},
				{SeatID: 2, TicketType: model.TicketAdult},
			},
			SeatTypes:  map[uint64]string{1: model.SeatTypeVIP, 2: model.SeatTypeVIP},
			PriceTable: map[PriceKey]uint32{{SeatType: model.SeatTypeVIP, TicketType: model.TicketAdult}: 160000},
			Promotion:  &capped,
			Now:        pricingNow,
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(70000), out.PromoDiscountCents)
		assert.Equal(t, uint32(250000), out.FinalCents)
	})
}

func TestResolvePromotionRejections(t *testing.T) {
	base := model.Promotion{
		DiscountType:  model.DiscountPercentage,
		DiscountValue: 10,
		StartsAt:      pricingNow.Add(-time.Hour),
		EndsAt:        pricingNow.Add(time.Hour),
		AppliesTo:     model.PromoScopeAll,
		Active:        true,
	}
	cases := []struct {
		name   string
		mutate func(p *model.Promotion)
		usage  uint32
		want   error
	}{
		{"inactive", func(p *model.Promotion) { p.Active = false }, 0, ErrPromotionInactive},
		{"not started", func(p *model.Promotion) { p.StartsAt = pricingNow.Add(time.Minute) }, 0, ErrPromotionNotStarted},
		{"expired", func(p *model.Promotion) { p.EndsAt = pricingNow }, 0, ErrPromotionExpired},
		{"globally exhausted", func(p *model.Promotion) { p.MaxUsage = 5; p.UsageCount = 5 }, 0, ErrPromotionExhausted},
		{"user exhausted", func(p *model.Promotion) { p.MaxUsagePerUser = 1 }, 1, ErrPromotionExhausted},
		{"below minimum", func(p *model.Promotion) { p.MinPurchaseCents = 50000 }, 0, ErrPromotionMinPurchase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			promo := base
			tc.mutate(&promo)
			_, err := Resolve(Input{
				Seats:          []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
				SeatTypes:      map[uint64]string{1: model.SeatTypeStandard},
				PriceTable:     standardTable(),
				Promotion:      &promo,
				PromotionUsage: tc.usage,
				Now:            pricingNow,
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolveFixedPromotionClampsToScope(t *testing.T) {
	promo := &model.Promotion{
		DiscountType:  model.DiscountFixed,
		DiscountValue: 99999,
		StartsAt:      pricingNow.Add(-time.Hour),
		EndsAt:        pricingNow.Add(time.Hour),
		AppliesTo:     model.PromoScopeConcessions,
		Active:        true,
	}
	out, err := Resolve(Input{
		Seats:      []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
		SeatTypes:  map[uint64]string{1: model.SeatTypeStandard},
		PriceTable: standardTable(),
		Concessions: []model.ConcessionLine{
			{ConcessionID: 7, Quantity: 1, UnitPriceCents: 6000},
		},
		Promotion: promo,
		Now:       pricingNow,
	})
	require.NoError(t, err)
	// The fixed amount exceeds the concession scope; it clamps there
	// and never eats into the tickets.
	assert.Equal(t, uint32(6000), out.PromoDiscountCents)
	assert.Equal(t, uint32(10000), out.FinalCents)
}

func TestResolveLoyaltyPoints(t *testing.T) {
	t.Run("insufficient balance", func(t *testing.T) {
		_, err := Resolve(Input{
			Seats:           []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
			SeatTypes:       map[uint64]string{1: model.SeatTypeStandard},
			PriceTable:      standardTable(),
			PointsRequested: 11,
			PointsBalance:   10,
			PointValueCents: 100,
			Now:             pricingNow,
		})
		assert.ErrorIs(t, err, ErrInsufficientPoints)
	})

	t.Run("final never below zero", func(t *testing.T) {
		out, err := Resolve(Input{
			Seats:           []model.SeatLine{{SeatID: 1, TicketType: model.TicketChild}},
			SeatTypes:       map[uint64]string{1: model.SeatTypeStandard},
			PriceTable:      standardTable(),
			PointsRequested: 500,
			PointsBalance:   500,
			PointValueCents: 100,
			Now:             pricingNow,
		})
		require.NoError(t, err)
		// 7000 remaining supports exactly 70 points; the rest stay
		// unconsumed so the confirm-time debit matches the discount.
		assert.Equal(t, uint32(70), out.PointsUsed)
		assert.Equal(t, uint32(7000), out.PointsDiscountCents)
		assert.Equal(t, uint32(0), out.FinalCents)
	})

	t.Run("partial final point", func(t *testing.T) {
		out, err := Resolve(Input{
			Seats:           []model.SeatLine{{SeatID: 1, TicketType: model.TicketChild}},
			SeatTypes:       map[uint64]string{1: model.SeatTypeStandard},
			PriceTable:      standardTable(),
			PointsRequested: 24,
			PointsBalance:   100,
			PointValueCents: 300,
			Now:             pricingNow,
		})
		require.NoError(t, err)
		// 7000 / 300 leaves a remainder, so a 24th point is allowed but
		// its discount is clipped at the remaining amount.
		assert.Equal(t, uint32(24), out.PointsUsed)
		assert.Equal(t, uint32(7000), out.PointsDiscountCents)
		assert.Equal(t, uint32(0), out.FinalCents)
	})

	t.Run("points apply after promotion", func(t *testing.T) {
		promo := &model.Promotion{
			DiscountType:  model.DiscountPercentage,
			DiscountValue: 50,
			StartsAt:      pricingNow.Add(-time.Hour),
			EndsAt:        pricingNow.Add(time.Hour),
			AppliesTo:     model.PromoScopeAll,
			Active:        true,
		}
		out, err := Resolve(Input{
			Seats:           []model.SeatLine{{SeatID: 1, TicketType: model.TicketAdult}},
			SeatTypes:       map[uint64]string{1: model.SeatTypeStandard},
			PriceTable:      standardTable(),
			Promotion:       promo,
			PointsRequested: 10,
			PointsBalance:   10,
			PointValueCents: 100,
			TaxPercent:      10,
			Now:             pricingNow,
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(5000), out.PromoDiscountCents)
		assert.Equal(t, uint32(1000), out.PointsDiscountCents)
		// Tax is computed on the fully discounted amount.
		assert.Equal(t, uint32(400), out.TaxCents)
		assert.Equal(t, uint32(4400), out.FinalCents)
	})
}
