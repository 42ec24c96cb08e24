package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/broadcast"
)

// EventsHandler streams seat-map updates to clients over SSE.
type EventsHandler struct {
	Hub *broadcast.Hub
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(hub *broadcast.Hub) *EventsHandler {
	if hub == nil {
		panic("nil hub passed to NewEventsHandler")
	}
	return &EventsHandler{Hub: hub}
}

// Stream handles GET /v1/showtimes/:id/events.  Each event carries a
// monotonically increasing version so clients can apply updates
// last-write-wins after reconnecting; the recommended client flow is
// to refetch the seat map on connect and then apply the stream.
func (h *EventsHandler) Stream(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := h.Hub.Subscribe(showtimeID)
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
