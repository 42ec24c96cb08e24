package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/config"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/pricing"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
)

// BookingHandler owns the booking lifecycle up to checkout.  The final
// transition to CONFIRMED belongs exclusively to the payment
// reconciler.
type BookingHandler struct {
	Catalog    *repository.CatalogRepo
	Seats      *repository.SeatStateRepo
	Holds      *repository.HoldRepo
	Bookings   *repository.BookingRepo
	Payments   *repository.PaymentRepo
	Promotions *repository.PromotionRepo
	Loyalty    *repository.LoyaltyRepo
	Clock      clock.Clock
	Cfg        *config.Config
	Log        observability.Logger
}

// NewBookingHandler constructs the handler.  All dependencies must be
// non-nil.
func NewBookingHandler(catalog *repository.CatalogRepo, seats *repository.SeatStateRepo, holds *repository.HoldRepo, bookings *repository.BookingRepo, payments *repository.PaymentRepo, promotions *repository.PromotionRepo, loyalty *repository.LoyaltyRepo, clk clock.Clock, cfg *config.Config, log observability.Logger) *BookingHandler {
	if catalog == nil || seats == nil || holds == nil || bookings == nil || payments == nil || promotions == nil || loyalty == nil || clk == nil || cfg == nil || log == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{
		Catalog: catalog, Seats: seats, Holds: holds, Bookings: bookings,
		Payments: payments, Promotions: promotions, Loyalty: loyalty,
		Clock: clk, Cfg: cfg, Log: log,
	}
}

// seatLineReq is one requested seat with its ticket type.
type seatLineReq struct {
	SeatID     uint64 `json:"seat_id"`
	TicketType string `json:"ticket_type"`
}

// concessionReq is one requested concession item.
type concessionReq struct {
	ConcessionID uint64 `json:"concession_id"`
	Quantity     uint32 `json:"quantity"`
}

// maxConcessionQuantity bounds a single concession line.  Anything
// above it is a malformed request, not a real order.
const maxConcessionQuantity = 100

func validateConcessions(reqs []concessionReq) error {
	for _, cr := range reqs {
		if cr.Quantity > maxConcessionQuantity {
			return fmt.Errorf("concession %d: quantity exceeds %d", cr.ConcessionID, maxConcessionQuantity)
		}
	}
	return nil
}

type bookingBody struct {
	HoldID        string          `json:"hold_id"`
	Seats         []seatLineReq   `json:"seats"`
	Concessions   []concessionReq `json:"concessions"`
	PromotionCode string          `json:"promotion_code"`
	Points        uint32          `json:"points"`
}

// Create handles POST /v1/bookings.  The booking is created from an
// active hold and must cover exactly the held seats; its price is
// resolved once here and again on every later mutation.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.HoldID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hold_id is required"})
	}

	ctx := c.Request().Context()
	now := h.Clock.Now().UTC()

	hold, err := h.Holds.Get(ctx, body.HoldID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if hold.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if !hold.ActiveAt(now) {
		return c.JSON(http.StatusGone, echo.Map{"error": "hold has expired"})
	}

	seats, err := seatLinesFor(hold, body.Seats)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := validateConcessions(body.Concessions); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	st, err := h.Catalog.Showtime(ctx, hold.ShowtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	breakdown, concLines, promoCode, err := h.price(ctx, st, userID, seats, body.Concessions, body.PromotionCode, body.Points, now)
	if err != nil {
		return pricingError(c, err)
	}

	booking := &model.Booking{
		Code:          repository.NewBookingCode(),
		UserID:        userID,
		ShowtimeID:    st.ID,
		HoldID:        hold.ID,
		Seats:         breakdown.Seats,
		Concessions:   concLines,
		PromotionCode: promoCode,
		PointsUsed:    breakdown.PointsUsed,
		SubtotalCents: breakdown.SubtotalCents,
		DiscountCents: breakdown.PromoDiscountCents + breakdown.PointsDiscountCents,
		TaxCents:      breakdown.TaxCents,
		FinalCents:    breakdown.FinalCents,
		Status:        model.BookingPending,
		ExpiresAt:     hold.ExpiresAt,
	}

	tx, err := h.Seats.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if existing, err := h.Bookings.PendingByHoldTx(ctx, tx, hold.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	} else if existing != nil {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      "a booking already exists for this hold",
			"booking_id": existing.ID,
		})
	}
	if err := h.Bookings.CreateTx(ctx, tx, booking); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusCreated, bookingResponse(booking, &breakdown))
}

// Update handles PATCH /v1/bookings/:id.  Only PENDING bookings can be
// edited; the backing hold must still be active and the seat set stays
// frozen to the held seats.  Ticket types, concessions, promotion and
// points can change, and the whole price is re-resolved.
func (h *BookingHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	now := h.Clock.Now().UTC()

	booking, err := h.Bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if booking.Status != model.BookingPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not editable", "status": booking.Status})
	}

	hold, err := h.Holds.Get(ctx, booking.HoldID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !hold.ActiveAt(now) {
		return c.JSON(http.StatusGone, echo.Map{"error": "hold has expired"})
	}

	seats, err := seatLinesFor(hold, body.Seats)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := validateConcessions(body.Concessions); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	st, err := h.Catalog.Showtime(ctx, booking.ShowtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	breakdown, concLines, promoCode, err := h.price(ctx, st, userID, seats, body.Concessions, body.PromotionCode, body.Points, now)
	if err != nil {
		return pricingError(c, err)
	}

	booking.Seats = breakdown.Seats
	booking.Concessions = concLines
	booking.PromotionCode = promoCode
	booking.PointsUsed = breakdown.PointsUsed
	booking.SubtotalCents = breakdown.SubtotalCents
	booking.DiscountCents = breakdown.PromoDiscountCents + breakdown.PointsDiscountCents
	booking.TaxCents = breakdown.TaxCents
	booking.FinalCents = breakdown.FinalCents

	tx, err := h.Seats.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Bookings.UpdatePricingTx(ctx, tx, booking); err != nil {
		if errors.Is(err, repository.ErrBookingNotPending) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not editable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update booking"})
	}
	if err := h.Bookings.ReplaceLinesTx(ctx, tx, booking); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update booking lines"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusOK, bookingResponse(booking, &breakdown))
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	booking, err := h.Bookings.Get(c.Request().Context(), bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, bookingResponse(booking, nil))
}

// List handles GET /v1/my-bookings.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// Checkout handles POST /v1/bookings/:id/checkout.  The booking moves
// to AWAITING_PAYMENT and a payment intent is created for the final
// amount; the result arrives asynchronously through the reconciler.
func (h *BookingHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Method == "" {
		body.Method = "CARD"
	}

	ctx := c.Request().Context()
	now := h.Clock.Now().UTC()

	tx, err := h.Seats.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := h.Bookings.GetTx(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	hold, err := h.Holds.GetTx(ctx, tx, booking.HoldID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !hold.ActiveAt(now) {
		return c.JSON(http.StatusGone, echo.Map{"error": "hold has expired"})
	}

	if err := h.Bookings.TransitionStatusTx(ctx, tx, booking.ID,
		[]string{model.BookingPending}, model.BookingAwaitingPayment); err != nil {
		if errors.Is(err, repository.ErrBookingNotPending) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot be checked out", "status": booking.Status})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update booking"})
	}

	payment := &model.Payment{
		BookingID:   booking.ID,
		Ref:         repository.NewPaymentRef(),
		AmountCents: booking.FinalCents,
		Method:      body.Method,
		Status:      model.PaymentPending,
	}
	if err := h.Payments.CreateTx(ctx, tx, payment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":   booking.ID,
		"status":       model.BookingAwaitingPayment,
		"payment_ref":  payment.Ref,
		"amount_cents": payment.AmountCents,
		"expires_at":   hold.ExpiresAt.Format(time.RFC3339),
	})
}

// price resolves the full breakdown for the requested lines and
// returns the concession lines with their unit prices filled in.
func (h *BookingHandler) price(ctx context.Context, st *model.Showtime, userID uint64, seats []model.SeatLine, concessions []concessionReq, promoCode string, points uint32, now time.Time) (pricing.Breakdown, []model.ConcessionLine, *string, error) {
	seatIDs := make([]uint64, 0, len(seats))
	for _, s := range seats {
		seatIDs = append(seatIDs, s.SeatID)
	}
	seatTypes, err := h.Catalog.SeatTypes(ctx, seatIDs)
	if err != nil {
		return pricing.Breakdown{}, nil, nil, err
	}
	priceTable, err := h.Catalog.PriceTable(ctx, st.HallID, st.DayType)
	if err != nil {
		return pricing.Breakdown{}, nil, nil, err
	}

	concLines := make([]model.ConcessionLine, 0, len(concessions))
	if len(concessions) > 0 {
		ids := make([]uint64, 0, len(concessions))
		for _, cr := range concessions {
			ids = append(ids, cr.ConcessionID)
		}
		prices, err := h.Catalog.ConcessionPrices(ctx, ids)
		if err != nil {
			return pricing.Breakdown{}, nil, nil, err
		}
		for _, cr := range concessions {
			if cr.Quantity == 0 {
				continue
			}
			unit, ok := prices[cr.ConcessionID]
			if !ok {
				return pricing.Breakdown{}, nil, nil, pricing.ErrPriceMissing
			}
			concLines = append(concLines, model.ConcessionLine{
				ConcessionID:   cr.ConcessionID,
				Quantity:       cr.Quantity,
				UnitPriceCents: unit,
			})
		}
	}

	var promo *model.Promotion
	var promoPtr *string
	var usage uint32
	if promoCode != "" {
		promo, err = h.Promotions.GetByCode(ctx, promoCode)
		if err != nil {
			return pricing.Breakdown{}, nil, nil, err
		}
		usage, err = h.Promotions.UserUsageCount(ctx, promo.ID, userID)
		if err != nil {
			return pricing.Breakdown{}, nil, nil, err
		}
		promoPtr = &promoCode
	}

	var balance uint32
	if points > 0 {
		account, err := h.Loyalty.Account(ctx, userID)
		if err != nil {
			return pricing.Breakdown{}, nil, nil, err
		}
		balance = account.Points
	}

	breakdown, err := pricing.Resolve(pricing.Input{
		Seats:           seats,
		SeatTypes:       seatTypes,
		PriceTable:      priceTable,
		Concessions:     concLines,
		Promotion:       promo,
		PromotionUsage:  usage,
		PointsRequested: points,
		PointsBalance:   balance,
		PointValueCents: uint32(h.Cfg.PointValueCents),
		TaxPercent:      uint32(h.Cfg.TaxPercent),
		Now:             now,
	})
	if err != nil {
		return pricing.Breakdown{}, nil, nil, err
	}
	return breakdown, concLines, promoPtr, nil
}

// seatLinesFor validates that the requested seat lines cover exactly
// the held seats, one line per seat.
func seatLinesFor(hold *model.Hold, reqs []seatLineReq) ([]model.SeatLine, error) {
	if len(reqs) != len(hold.SeatIDs) {
		return nil, errors.New("seats must cover exactly the held seats")
	}
	held := make(map[uint64]struct{}, len(hold.SeatIDs))
	for _, id := range hold.SeatIDs {
		held[id] = struct{}{}
	}
	lines := make([]model.SeatLine, 0, len(reqs))
	seen := make(map[uint64]struct{}, len(reqs))
	for _, req := range reqs {
		if _, ok := held[req.SeatID]; !ok {
			return nil, errors.New("seat is not part of the hold")
		}
		if _, dup := seen[req.SeatID]; dup {
			return nil, errors.New("duplicate seat in request")
		}
		seen[req.SeatID] = struct{}{}
		tt := req.TicketType
		if tt == "" {
			tt = model.TicketAdult
		}
		lines = append(lines, model.SeatLine{SeatID: req.SeatID, TicketType: tt})
	}
	return lines, nil
}

// pricingError maps resolver failures to client errors with the
// specific rejection reason.
func pricingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrPromotionNotFound):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "promotion not found"})
	case errors.Is(err, pricing.ErrPriceMissing),
		errors.Is(err, pricing.ErrAmountTooLarge),
		errors.Is(err, pricing.ErrInsufficientPoints),
		errors.Is(err, pricing.ErrPromotionInactive),
		errors.Is(err, pricing.ErrPromotionNotStarted),
		errors.Is(err, pricing.ErrPromotionExpired),
		errors.Is(err, pricing.ErrPromotionExhausted),
		errors.Is(err, pricing.ErrPromotionMinPurchase):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pricing failed"})
	}
}

// bookingResponse renders a booking, optionally with the freshly
// resolved breakdown detail.
func bookingResponse(b *model.Booking, bd *pricing.Breakdown) echo.Map {
	resp := echo.Map{
		"booking_id":     b.ID,
		"booking_code":   b.Code,
		"showtime_id":    b.ShowtimeID,
		"hold_id":        b.HoldID,
		"status":         b.Status,
		"seats":          b.Seats,
		"concessions":    b.Concessions,
		"points_used":    b.PointsUsed,
		"subtotal_cents": b.SubtotalCents,
		"discount_cents": b.DiscountCents,
		"tax_cents":      b.TaxCents,
		"final_cents":    b.FinalCents,
		"expires_at":     b.ExpiresAt.Format(time.RFC3339),
	}
	if b.PromotionCode != nil {
		resp["promotion_code"] = *b.PromotionCode
	}
	if bd != nil {
		resp["breakdown"] = echo.Map{
			"tickets_cents":         bd.TicketsCents,
			"concessions_cents":     bd.ConcessionsCents,
			"promo_discount_cents":  bd.PromoDiscountCents,
			"points_discount_cents": bd.PointsDiscountCents,
		}
	}
	return resp
}
