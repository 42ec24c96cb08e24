package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/broadcast"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
)

// Sweeper releases expired holds.  Expiry is enforced lazily on every
// read and transition; the sweeper runs behind that as periodic cleanup
// so that abandoned holds do not keep seats off sale until someone
// looks at them.
type Sweeper struct {
	db       *sql.DB
	seats    *repository.SeatStateRepo
	holds    *repository.HoldRepo
	bookings *repository.BookingRepo
	pub      broadcast.Publisher
	clk      clock.Clock
	log      observability.Logger
}

// NewSweeper wires the sweeper.  pub may be nil when broadcasting is
// disabled.
func NewSweeper(
	db *sql.DB,
	seats *repository.SeatStateRepo,
	holds *repository.HoldRepo,
	bookings *repository.BookingRepo,
	pub broadcast.Publisher,
	clk clock.Clock,
	log observability.Logger,
) *Sweeper {
	if db == nil || seats == nil || holds == nil || bookings == nil || clk == nil || log == nil {
		panic("service: NewSweeper received nil dependency")
	}
	return &Sweeper{db: db, seats: seats, holds: holds, bookings: bookings, pub: pub, clk: clk, log: log}
}

// SweepExpired releases up to limit expired holds and reports how many
// were reaped.  Each hold gets its own transaction so one poisoned row
// cannot block the rest of the batch.
func (s *Sweeper) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.clk.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	expired, err := s.holds.ExpiredTx(ctx, tx, now, limit)
	if rerr := tx.Rollback(); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, h := range expired {
		if err := s.ExpireHold(ctx, h.ID, now); err != nil {
			s.log.WithField("hold_id", h.ID).Error("expiry sweep failed for hold: ", err)
			continue
		}
		reaped++
	}
	if reaped > 0 {
		observability.HoldsReaped.Add(float64(reaped))
	}
	return reaped, nil
}

// ExpireHold moves a single expired hold to EXPIRED in its own
// transaction and broadcasts the released seats after commit.
func (s *Sweeper) ExpireHold(ctx context.Context, holdID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	released, showtimeID, err := s.ExpireHoldTx(ctx, tx, holdID, now)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	if len(released) > 0 {
		s.publishReleased(showtimeID, holdID, released, now)
	}
	return nil
}

// ExpireHoldTx performs the expiry inside the caller's transaction:
// hold to EXPIRED, its seats back to AVAILABLE, any non-terminal
// booking backed by it to EXPIRED.  The holder guard on the seat
// transition makes this safe to race with a late confirmation:
// whichever transaction commits first wins every seat, the loser
// touches none.  Returns the seats actually released; the caller
// broadcasts them after commit.
func (s *Sweeper) ExpireHoldTx(ctx context.Context, tx *sql.Tx, holdID string, now time.Time) ([]uint64, uint64, error) {
	hold, err := s.holds.GetTx(ctx, tx, holdID)
	if err != nil {
		return nil, 0, err
	}
	if !hold.ExpiredAt(now) {
		// Renewed between candidate selection and now; leave it alone.
		return nil, hold.ShowtimeID, nil
	}

	moved, err := s.holds.MarkTerminalTx(ctx, tx, hold.ID, model.HoldExpired)
	if err != nil {
		return nil, 0, err
	}
	if !moved {
		// Already terminal: a confirmation or an earlier sweep won.
		return nil, hold.ShowtimeID, nil
	}

	guardID := hold.ID
	if len(hold.SeatIDs) > 0 {
		if err := s.seats.TransitionTx(ctx, tx, hold.ShowtimeID, hold.SeatIDs,
			repository.Guard{Status: model.SeatStateHeld, HoldID: &guardID},
			repository.Target{Status: model.SeatStateAvailable}); err != nil {
			return nil, 0, err
		}
	}

	if booking, err := s.bookings.PendingByHoldTx(ctx, tx, hold.ID); err != nil {
		return nil, 0, err
	} else if booking != nil {
		if err := s.bookings.TransitionStatusTx(ctx, tx, booking.ID,
			[]string{model.BookingPending, model.BookingAwaitingPayment}, model.BookingExpired); err != nil {
			return nil, 0, err
		}
	}
	return hold.SeatIDs, hold.ShowtimeID, nil
}

// CancelPendingByHoldTx cancels the non-terminal booking backed by the
// given hold, if one exists.  Used by explicit release; expiry uses the
// EXPIRED terminal state instead.
func (s *Sweeper) CancelPendingByHoldTx(ctx context.Context, tx *sql.Tx, holdID string) (*model.Booking, error) {
	booking, err := s.bookings.PendingByHoldTx(ctx, tx, holdID)
	if err != nil || booking == nil {
		return nil, err
	}
	if err := s.bookings.TransitionStatusTx(ctx, tx, booking.ID,
		[]string{model.BookingPending, model.BookingAwaitingPayment}, model.BookingCancelled); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Sweeper) publishReleased(showtimeID uint64, holdID string, seatIDs []uint64, now time.Time) {
	if s.pub == nil {
		return
	}
	ev := broadcast.NewEvent(broadcast.EventSeatReleased, showtimeID, seatIDs, now)
	ev.HoldID = holdID
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pub.Publish(pctx, ev); err != nil {
		s.log.WithField("hold_id", holdID).Warn("seat-released publish failed: ", err)
	}
}

// BroadcastCountdown publishes one hold-countdown-tick event per active
// hold so seat-map clients can render the remaining time without
// polling.
func (s *Sweeper) BroadcastCountdown(ctx context.Context) error {
	if s.pub == nil {
		return nil
	}
	now := s.clk.Now().UTC()
	holds, err := s.holds.ActiveHolds(ctx, now)
	if err != nil {
		return err
	}
	for _, h := range holds {
		ev := broadcast.NewEvent(broadcast.EventCountdownTick, h.ShowtimeID, h.SeatIDs, now)
		ev.HoldID = h.ID
		ev.SecondsRemaining = int64(h.ExpiresAt.Sub(now) / time.Second)
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.WithField("hold_id", h.ID).Warn("countdown publish failed: ", err)
		}
	}
	return nil
}
