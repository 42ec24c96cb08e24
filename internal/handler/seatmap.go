package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
)

// SeatMapHandler serves the per-showtime seat map.
type SeatMapHandler struct {
	Catalog *repository.CatalogRepo
	Seats   *repository.SeatStateRepo
	Clock   clock.Clock
}

// NewSeatMapHandler constructs the handler.  All dependencies must be
// non-nil.
func NewSeatMapHandler(catalog *repository.CatalogRepo, seats *repository.SeatStateRepo, clk clock.Clock) *SeatMapHandler {
	if catalog == nil || seats == nil || clk == nil {
		panic("nil dependency passed to NewSeatMapHandler")
	}
	return &SeatMapHandler{Catalog: catalog, Seats: seats, Clock: clk}
}

// Get handles GET /v1/showtimes/:id/seat-map.  State rows are
// materialized lazily on first view, and holds past their expiry are
// presented as AVAILABLE even before the reaper has released them, so
// clients never see a phantom hold.
func (h *SeatMapHandler) Get(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()

	st, err := h.Catalog.Showtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	tx, err := h.Seats.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	if err := h.Seats.MaterializeTx(ctx, tx, st.ID, st.HallID); err != nil {
		_ = tx.Rollback()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to materialize seat map"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}

	rows, err := h.Seats.SeatMap(ctx, st.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat map"})
	}

	now := h.Clock.Now().UTC()
	available := 0
	for i := range rows {
		if rows[i].Status == model.SeatStateHeld && rows[i].HoldExpiresAt != nil && !rows[i].HoldExpiresAt.After(now) {
			rows[i].Status = model.SeatStateAvailable
			rows[i].HoldExpiresAt = nil
		}
		if rows[i].Status == model.SeatStateAvailable {
			available++
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id":     st.ID,
		"starts_at":       st.StartsAt.Format(time.RFC3339),
		"available_seats": available,
		"seats":           rows,
		"as_of":           now.Format(time.RFC3339),
	})
}
