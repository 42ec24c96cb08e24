// Package service holds the transactional workflows that span several
// repositories: payment reconciliation and the hold expiry sweep.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/broadcast"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/queue"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
)

// Reconciliation outcomes.  Replay means the result was already applied
// by an earlier delivery and nothing changed this time.
const (
	OutcomeConfirmed      = "confirmed"
	OutcomeCancelled      = "cancelled"
	OutcomeRefundRequired = "refund-required"
	OutcomeReplay         = "replay"
)

// Outcome reports what a payment result did to its booking.
type Outcome struct {
	Result    string
	BookingID uint64
	Reason    string
}

// Reconciler applies asynchronous payment results to bookings.  It is
// the only component allowed to drive a booking to CONFIRMED, and it
// must tolerate duplicate deliveries: providers retry callbacks and the
// broker is at-least-once.
type Reconciler struct {
	db       *sql.DB
	seats    *repository.SeatStateRepo
	holds    *repository.HoldRepo
	bookings *repository.BookingRepo
	payments *repository.PaymentRepo
	promos   *repository.PromotionRepo
	loyalty  *repository.LoyaltyRepo
	pub      broadcast.Publisher
	clk      clock.Clock
	log      observability.Logger

	earnPerCents int // cents of spend per loyalty point earned; 0 disables
}

// NewReconciler wires the reconciler.  All dependencies are required
// except pub, which may be nil when broadcasting is disabled.
func NewReconciler(
	db *sql.DB,
	seats *repository.SeatStateRepo,
	holds *repository.HoldRepo,
	bookings *repository.BookingRepo,
	payments *repository.PaymentRepo,
	promos *repository.PromotionRepo,
	loyalty *repository.LoyaltyRepo,
	pub broadcast.Publisher,
	clk clock.Clock,
	log observability.Logger,
	earnPerCents int,
) *Reconciler {
	if db == nil || seats == nil || holds == nil || bookings == nil || payments == nil || promos == nil || loyalty == nil || clk == nil || log == nil {
		panic("service: NewReconciler received nil dependency")
	}
	return &Reconciler{
		db:           db,
		seats:        seats,
		holds:        holds,
		bookings:     bookings,
		payments:     payments,
		promos:       promos,
		loyalty:      loyalty,
		pub:          pub,
		clk:          clk,
		log:          log,
		earnPerCents: earnPerCents,
	}
}

// HandleResult applies one payment result identified by its payment
// ref.  status is COMPLETED, FAILED or TIMEOUT.  The method is
// idempotent: replaying a result that was already applied returns the
// replay outcome without touching state.
func (s *Reconciler) HandleResult(ctx context.Context, ref, status, providerTxnID string) (Outcome, error) {
	switch status {
	case model.ResultCompleted, model.ResultFailed, model.ResultTimeout:
	default:
		return Outcome{}, fmt.Errorf("unknown payment result status %q", status)
	}

	now := s.clk.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pay, err := s.payments.GetByRefTx(ctx, tx, ref)
	if err != nil {
		return Outcome{}, err
	}
	booking, err := s.bookings.GetTx(ctx, tx, pay.BookingID)
	if err != nil {
		return Outcome{}, err
	}

	// Replay detection: a terminal payment means this result (or a
	// competing one) was already reconciled.
	if pay.Status == model.PaymentCompleted || pay.Status == model.PaymentFailed || pay.Status == model.PaymentRefundRequired {
		return Outcome{Result: OutcomeReplay, BookingID: booking.ID, Reason: "payment already " + pay.Status}, nil
	}
	if model.BookingTerminal(booking.Status) {
		return Outcome{Result: OutcomeReplay, BookingID: booking.ID, Reason: "booking already " + booking.Status}, nil
	}

	var (
		out Outcome
		ev  *broadcast.Event
		bc  *queue.BookingConfirmedEvent
	)
	switch status {
	case model.ResultFailed, model.ResultTimeout:
		out, ev, err = s.applyFailure(ctx, tx, pay, booking, now)
	case model.ResultCompleted:
		out, ev, bc, err = s.applyCompletion(ctx, tx, pay, booking, providerTxnID, now)
	}
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}
	committed = true

	// Side effects run after commit and never fail the reconciliation.
	if ev != nil {
		s.publish(*ev)
	}
	if bc != nil {
		go func(event queue.BookingConfirmedEvent) {
			pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := queue.PublishBookingConfirmed(pctx, event); err != nil {
				s.log.WithField("booking_id", event.BookingID).Warn("booking.confirmed publish failed: ", err)
			}
		}(*bc)
	}
	return out, nil
}

// applyFailure cancels the booking after a FAILED or TIMEOUT result and
// puts the held seats back on sale.
func (s *Reconciler) applyFailure(ctx context.Context, tx *sql.Tx, pay *model.Payment, booking *model.Booking, now time.Time) (Outcome, *broadcast.Event, error) {
	ok, err := s.payments.SetStatusTx(ctx, tx, pay.ID,
		[]string{model.PaymentPending, model.PaymentProcessing}, model.PaymentFailed, nil)
	if err != nil {
		return Outcome{}, nil, err
	}
	if !ok {
		return Outcome{Result: OutcomeReplay, BookingID: booking.ID, Reason: "payment state already moved"}, nil, nil
	}

	if err := s.bookings.TransitionStatusTx(ctx, tx, booking.ID,
		[]string{model.BookingPending, model.BookingAwaitingPayment}, model.BookingCancelled); err != nil {
		return Outcome{}, nil, err
	}

	released, err := s.releaseHeldSeats(ctx, tx, booking, now)
	if err != nil {
		return Outcome{}, nil, err
	}
	if _, err := s.holds.MarkTerminalTx(ctx, tx, booking.HoldID, model.HoldReleased); err != nil {
		return Outcome{}, nil, err
	}

	var ev *broadcast.Event
	if len(released) > 0 {
		e := broadcast.NewEvent(broadcast.EventSeatReleased, booking.ShowtimeID, released, now)
		e.HoldID = booking.HoldID
		ev = &e
	}
	return Outcome{Result: OutcomeCancelled, BookingID: booking.ID, Reason: "payment failed"}, ev, nil
}

// applyCompletion confirms the booking if its hold still protects the
// seats, or flags the payment for refund when the money arrived after
// the hold lapsed.
func (s *Reconciler) applyCompletion(ctx context.Context, tx *sql.Tx, pay *model.Payment, booking *model.Booking, providerTxnID string, now time.Time) (Outcome, *broadcast.Event, *queue.BookingConfirmedEvent, error) {
	hold, err := s.holds.GetTx(ctx, tx, booking.HoldID)
	if err != nil {
		return Outcome{}, nil, nil, err
	}

	if !hold.ActiveAt(now) {
		// The customer paid but the seats were released in the
		// meantime and may belong to someone else now.  Never steal
		// them back: expire the booking and queue the refund.
		if _, err := s.payments.SetStatusTx(ctx, tx, pay.ID,
			[]string{model.PaymentPending, model.PaymentProcessing}, model.PaymentRefundRequired, strPtr(providerTxnID)); err != nil {
			return Outcome{}, nil, nil, err
		}
		if err := s.bookings.TransitionStatusTx(ctx, tx, booking.ID,
			[]string{model.BookingPending, model.BookingAwaitingPayment}, model.BookingExpired); err != nil {
			return Outcome{}, nil, nil, err
		}
		// A lapsed but not yet reaped hold may still mark the seats
		// HELD; release them so they go back on sale immediately.
		if _, err := s.releaseHeldSeats(ctx, tx, booking, now); err != nil {
			return Outcome{}, nil, nil, err
		}
		if _, err := s.holds.MarkTerminalTx(ctx, tx, hold.ID, model.HoldExpired); err != nil {
			return Outcome{}, nil, nil, err
		}
		observability.PaymentMismatches.Inc()
		s.log.WithField("booking_id", booking.ID).Warn("completed payment arrived after hold expiry; refund required")
		return Outcome{Result: OutcomeRefundRequired, BookingID: booking.ID, Reason: "hold expired before payment completed"}, nil, nil, nil
	}

	seatIDs := booking.SeatIDs()
	holdID := hold.ID
	if err := s.seats.TransitionTx(ctx, tx, booking.ShowtimeID, seatIDs,
		repository.Guard{Status: model.SeatStateHeld, HoldID: &holdID},
		repository.Target{Status: model.SeatStateConfirmed}); err != nil {
		return Outcome{}, nil, nil, err
	}

	if err := s.bookings.TransitionStatusTx(ctx, tx, booking.ID,
		[]string{model.BookingAwaitingPayment}, model.BookingConfirmed); err != nil {
		return Outcome{}, nil, nil, err
	}

	// Tickets are issued at most once per booking.
	count, err := s.bookings.TicketCountTx(ctx, tx, booking.ID)
	if err != nil {
		return Outcome{}, nil, nil, err
	}
	var tickets []model.Ticket
	if count == 0 {
		tickets, err = s.bookings.CreateTicketsTx(ctx, tx, booking.ID, booking.Code, booking.Seats)
		if err != nil {
			return Outcome{}, nil, nil, err
		}
	}

	if booking.PromotionCode != nil {
		promo, err := s.promos.GetByCode(ctx, *booking.PromotionCode)
		if err != nil && !errors.Is(err, repository.ErrPromotionNotFound) {
			return Outcome{}, nil, nil, err
		}
		if promo != nil {
			if err := s.promos.ConsumeTx(ctx, tx, promo.ID, booking.UserID, booking.ID, booking.DiscountCents); err != nil {
				return Outcome{}, nil, nil, err
			}
		}
	}

	if booking.PointsUsed > 0 {
		if err := s.loyalty.DebitTx(ctx, tx, booking.UserID, booking.ID, booking.PointsUsed); err != nil {
			return Outcome{}, nil, nil, err
		}
	}
	var earned uint32
	if s.earnPerCents > 0 {
		earned = booking.FinalCents / uint32(s.earnPerCents)
		if earned > 0 {
			if err := s.loyalty.CreditTx(ctx, tx, booking.UserID, booking.ID, earned); err != nil {
				return Outcome{}, nil, nil, err
			}
		}
	}

	if _, err := s.holds.MarkTerminalTx(ctx, tx, hold.ID, model.HoldConverted); err != nil {
		return Outcome{}, nil, nil, err
	}
	if _, err := s.payments.SetStatusTx(ctx, tx, pay.ID,
		[]string{model.PaymentPending, model.PaymentProcessing}, model.PaymentCompleted, strPtr(providerTxnID)); err != nil {
		return Outcome{}, nil, nil, err
	}

	observability.BookingsConfirmed.Inc()

	ev := broadcast.NewEvent(broadcast.EventSeatConfirmed, booking.ShowtimeID, seatIDs, now)
	ev.HoldID = hold.ID

	codes := make([]string, 0, len(tickets))
	for _, t := range tickets {
		codes = append(codes, t.Code)
	}
	bc := &queue.BookingConfirmedEvent{
		BookingID:    booking.ID,
		BookingCode:  booking.Code,
		UserID:       booking.UserID,
		ShowtimeID:   booking.ShowtimeID,
		SeatIDs:      seatIDs,
		TicketCodes:  codes,
		FinalCents:   booking.FinalCents,
		PointsEarned: earned,
		ConfirmedAt:  now.Format("2006-01-02 15:04:05"),
	}
	return Outcome{Result: OutcomeConfirmed, BookingID: booking.ID}, &ev, bc, nil
}

// releaseHeldSeats returns the booking's seats to AVAILABLE, but only
// the ones still held by the booking's own hold.  Seats already
// released (or re-held by someone else) are skipped rather than
// treated as a conflict.
func (s *Reconciler) releaseHeldSeats(ctx context.Context, tx *sql.Tx, booking *model.Booking, now time.Time) ([]uint64, error) {
	states, err := s.seats.StatesTx(ctx, tx, booking.ShowtimeID, booking.SeatIDs())
	if err != nil {
		return nil, err
	}
	var ours []uint64
	for _, st := range states {
		if st.HeldBy(booking.HoldID) {
			ours = append(ours, st.SeatID)
		}
	}
	if len(ours) == 0 {
		return nil, nil
	}
	holdID := booking.HoldID
	if err := s.seats.TransitionTx(ctx, tx, booking.ShowtimeID, ours,
		repository.Guard{Status: model.SeatStateHeld, HoldID: &holdID},
		repository.Target{Status: model.SeatStateAvailable}); err != nil {
		return nil, err
	}
	return ours, nil
}

func (s *Reconciler) publish(ev broadcast.Event) {
	if s.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.WithField("showtime_id", ev.ShowtimeID).Warn("seat event publish failed: ", err)
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
