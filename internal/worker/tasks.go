// Package worker runs the background task server: the periodic hold
// reaper and the hold-countdown broadcaster, scheduled through asynq
// on the same Redis instance used for rate limiting and pub/sub.
package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/service"
)

const (
	TypeHoldReap = "hold:reap"
	TypeHoldTick = "hold:tick"

	// Upper bound on holds released per reap run; the next run picks
	// up the remainder.
	reapBatchSize = 200
)

// HoldReapPayload bounds one reaper run.
type HoldReapPayload struct {
	Limit int `json:"limit"`
}

// Handlers owns the task implementations.
type Handlers struct {
	sweeper *service.Sweeper
	log     observability.Logger
}

// NewHandlers wires the task handlers.
func NewHandlers(sweeper *service.Sweeper, log observability.Logger) *Handlers {
	if sweeper == nil || log == nil {
		panic("worker: NewHandlers received nil dependency")
	}
	return &Handlers{sweeper: sweeper, log: log}
}

// HandleHoldReap releases holds whose expiry has passed.
func (h *Handlers) HandleHoldReap(ctx context.Context, t *asynq.Task) error {
	var payload HoldReapPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	if payload.Limit <= 0 {
		payload.Limit = reapBatchSize
	}
	reaped, err := h.sweeper.SweepExpired(ctx, payload.Limit)
	if err != nil {
		return err
	}
	if reaped > 0 {
		h.log.WithField("reaped", reaped).Info("expired holds released")
	}
	return nil
}

// HandleHoldTick broadcasts remaining-time events for active holds.
func (h *Handlers) HandleHoldTick(ctx context.Context, t *asynq.Task) error {
	return h.sweeper.BroadcastCountdown(ctx)
}
