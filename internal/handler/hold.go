package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/broadcast"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/config"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/service"
)

// HoldHandler owns the seat-hold lifecycle: request, renew, release.
type HoldHandler struct {
	Catalog *repository.CatalogRepo
	Seats   *repository.SeatStateRepo
	Holds   *repository.HoldRepo
	Sweeper *service.Sweeper
	Pub     broadcast.Publisher
	Clock   clock.Clock
	Cfg     *config.Config
	Log     observability.Logger
}

// NewHoldHandler constructs the handler.  Pub may be nil when
// broadcasting is disabled; everything else must be non-nil.
func NewHoldHandler(catalog *repository.CatalogRepo, seats *repository.SeatStateRepo, holds *repository.HoldRepo, sweeper *service.Sweeper, pub broadcast.Publisher, clk clock.Clock, cfg *config.Config, log observability.Logger) *HoldHandler {
	if catalog == nil || seats == nil || holds == nil || sweeper == nil || clk == nil || cfg == nil || log == nil {
		panic("nil dependency passed to NewHoldHandler")
	}
	return &HoldHandler{Catalog: catalog, Seats: seats, Holds: holds, Sweeper: sweeper, Pub: pub, Clock: clk, Cfg: cfg, Log: log}
}

// Create handles POST /v1/showtimes/:id/holds.  The request body
// carries a "seat_ids" array.  Either every requested seat moves to
// HELD under one new hold or none do; on conflict the response lists
// every seat that failed the availability check.
func (h *HoldHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	seatIDs := dedupeSeatIDs(body.SeatIDs)
	if len(seatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	if len(seatIDs) > h.Cfg.MaxSeatsPerHold {
		observability.HoldRequests.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     "too many seats requested",
			"max_seats": h.Cfg.MaxSeatsPerHold,
		})
	}

	ctx := c.Request().Context()
	st, err := h.Catalog.Showtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := h.Clock.Now().UTC()
	expiresAt := now.Add(h.Cfg.HoldTTL)

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

	if err := h.Seats.MaterializeTx(ctx, tx, st.ID, st.HallID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to materialize seat map"})
	}

	// Lazy expiry: lapsed holders among the requested seats are swept
	// inside this transaction so their seats count as available here
	// and now, without waiting for the reaper.
	released, err := h.sweepRequestedTx(ctx, tx, st.ID, seatIDs, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sweep expired holds"})
	}

	// One active hold per user per showtime.
	existing, err := h.Holds.ActiveByUserAndShowtimeTx(ctx, tx, userID, st.ID, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if existing != nil {
		if h.Cfg.HoldRepeatPolicy == config.RepeatExtend && sameSeatSet(existing.SeatIDs, seatIDs) {
			newExpiry := model.RenewedUntil(now, h.Cfg.HoldTTL)
			if err := h.Holds.RenewTx(ctx, tx, existing.ID, now, newExpiry); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to extend hold"})
			}
			if err := tx.Commit(); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
			}
			committed = true
			observability.HoldRequests.WithLabelValues("granted").Inc()
			return c.JSON(http.StatusOK, echo.Map{
				"hold_id":    existing.ID,
				"seat_ids":   existing.SeatIDs,
				"expires_at": newExpiry.Format(time.RFC3339),
				"extended":   true,
			})
		}
		observability.HoldRequests.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "an active hold already exists for this showtime",
			"hold_id": existing.ID,
		})
	}

	holdID := repository.NewHoldID()
	exp := expiresAt
	if err := h.Seats.TransitionTx(ctx, tx, st.ID, seatIDs,
		repository.Guard{Status: model.SeatStateAvailable},
		repository.Target{Status: model.SeatStateHeld, HoldID: &holdID, HoldExpiresAt: &exp}); err != nil {
		if conflict, ok := repository.AsSeatConflict(err); ok {
			observability.HoldRequests.WithLabelValues("conflict").Inc()
			observability.SeatConflicts.Inc()
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some seats are unavailable",
				"unavailable": conflict.SeatIDs,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hold seats"})
	}

	hold := &model.Hold{
		ID:         holdID,
		ShowtimeID: st.ID,
		UserID:     userID,
		Status:     model.HoldActive,
		ExpiresAt:  expiresAt,
	}
	if err := h.Holds.CreateTx(ctx, tx, hold); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create hold"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	observability.HoldRequests.WithLabelValues("granted").Inc()

	for hid, seats := range released {
		h.publish(broadcast.EventSeatReleased, st.ID, hid, seats, now)
	}
	h.publish(broadcast.EventSeatHeld, st.ID, holdID, seatIDs, now)

	return c.JSON(http.StatusCreated, echo.Map{
		"hold_id":    holdID,
		"seat_ids":   seatIDs,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// Renew handles PATCH /v1/holds/:id.  The hold is extended to now plus
// the configured TTL, never from its original creation time.
func (h *HoldHandler) Renew(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID := c.Param("id")
	if holdID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
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

	hold, err := h.Holds.GetTx(ctx, tx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if hold.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	newExpiry := model.RenewedUntil(now, h.Cfg.HoldTTL)
	if err := h.Holds.RenewTx(ctx, tx, holdID, now, newExpiry); err != nil {
		switch {
		case errors.Is(err, repository.ErrHoldNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		case errors.Is(err, repository.ErrHoldExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "hold has expired"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to renew hold"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	ev := broadcast.NewEvent(broadcast.EventCountdownTick, hold.ShowtimeID, hold.SeatIDs, now)
	ev.HoldID = hold.ID
	ev.SecondsRemaining = int64(newExpiry.Sub(now) / time.Second)
	h.publishEvent(ev)

	return c.JSON(http.StatusOK, echo.Map{
		"hold_id":    holdID,
		"expires_at": newExpiry.Format(time.RFC3339),
	})
}

// Release handles DELETE /v1/holds/:id.  Releasing is idempotent: a
// hold that already reached a terminal state reports zero released
// seats.  A lapsed hold is recorded as EXPIRED rather than RELEASED.
func (h *HoldHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID := c.Param("id")
	if holdID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
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

	hold, err := h.Holds.GetTx(ctx, tx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "hold not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if hold.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	reason := c.QueryParam("reason")
	if reason == "" {
		reason = model.ReleaseUserCancelled
	}
	terminal := model.StatusForReason(reason)
	if hold.ExpiredAt(now) {
		// A lapsed hold is recorded as expired whatever the caller says.
		terminal = model.HoldExpired
	}
	moved, err := h.Holds.MarkTerminalTx(ctx, tx, holdID, terminal)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release hold"})
	}
	if !moved {
		return c.JSON(http.StatusOK, echo.Map{"hold_id": holdID, "released": 0})
	}

	guardID := hold.ID
	if len(hold.SeatIDs) > 0 {
		if err := h.Seats.TransitionTx(ctx, tx, hold.ShowtimeID, hold.SeatIDs,
			repository.Guard{Status: model.SeatStateHeld, HoldID: &guardID},
			repository.Target{Status: model.SeatStateAvailable}); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release seats"})
		}
	}

	// A booking backed by this hold can no longer be paid for.
	if booking, err := h.Sweeper.CancelPendingByHoldTx(ctx, tx, holdID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	} else if booking != nil {
		h.Log.WithField("booking_id", booking.ID).Info("booking cancelled by hold release")
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.publish(broadcast.EventSeatReleased, hold.ShowtimeID, hold.ID, hold.SeatIDs, now)
	return c.JSON(http.StatusOK, echo.Map{
		"hold_id":  holdID,
		"released": len(hold.SeatIDs),
	})
}

// sweepRequestedTx expires lapsed holders found among the requested
// seats inside the caller's transaction.  Returns released seats
// grouped by the hold that owned them, for broadcasting after commit.
func (h *HoldHandler) sweepRequestedTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, now time.Time) (map[string][]uint64, error) {
	states, err := h.Seats.StatesTx(ctx, tx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}
	lapsed := make(map[string]struct{})
	for _, st := range states {
		if st.Status == model.SeatStateHeld && st.HoldID != nil &&
			st.HoldExpiresAt != nil && !st.HoldExpiresAt.After(now) {
			lapsed[*st.HoldID] = struct{}{}
		}
	}
	released := make(map[string][]uint64, len(lapsed))
	for holdID := range lapsed {
		seats, _, err := h.Sweeper.ExpireHoldTx(ctx, tx, holdID, now)
		if err != nil {
			return nil, err
		}
		if len(seats) > 0 {
			released[holdID] = seats
		}
	}
	return released, nil
}

func (h *HoldHandler) publish(typ string, showtimeID uint64, holdID string, seatIDs []uint64, now time.Time) {
	ev := broadcast.NewEvent(typ, showtimeID, seatIDs, now)
	ev.HoldID = holdID
	h.publishEvent(ev)
}

func (h *HoldHandler) publishEvent(ev broadcast.Event) {
	if h.Pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Pub.Publish(ctx, ev); err != nil {
		h.Log.WithField("showtime_id", ev.ShowtimeID).Warn("seat event publish failed: ", err)
	}
}

func sameSeatSet(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uint64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
