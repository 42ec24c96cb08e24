package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/service"
)

// AdminHandler exposes operational endpoints for staff.
type AdminHandler struct {
	Sweeper *service.Sweeper
	Log     observability.Logger
}

// NewAdminHandler returns an AdminHandler.
func NewAdminHandler(sweeper *service.Sweeper, log observability.Logger) *AdminHandler {
	if sweeper == nil || log == nil {
		panic("handler: NewAdminHandler received nil dependency")
	}
	return &AdminHandler{Sweeper: sweeper, Log: log}
}

// SweepHolds runs an expiry sweep on demand, ahead of the periodic
// reaper.  Useful when support needs lapsed holds released immediately.
func (h *AdminHandler) SweepHolds(c echo.Context) error {
	reaped, err := h.Sweeper.SweepExpired(c.Request().Context(), 500)
	if err != nil {
		h.Log.Error("manual hold sweep failed: ", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reaped": reaped})
}
