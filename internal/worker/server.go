package worker

import (
	"context"
	"encoding/json"
	"os"

	"github.com/hibiken/asynq"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/config"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
)

// RedisOpt builds the asynq connection options from the same
// environment the main Redis client uses.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.RedisAddr(),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// Run starts the asynq server and the periodic scheduler and blocks
// until ctx is cancelled.  Reap runs every cfg.ReaperInterval, the
// countdown broadcast every cfg.CountdownTick.
func Run(ctx context.Context, cfg *config.Config, handlers *Handlers, log observability.Logger) error {
	redisOpt := RedisOpt()

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeHoldReap, handlers.HandleHoldReap)
	mux.HandleFunc(TypeHoldTick, handlers.HandleHoldTick)

	scheduler := asynq.NewScheduler(redisOpt, nil)

	reapPayload, _ := json.Marshal(HoldReapPayload{Limit: reapBatchSize})
	if _, err := scheduler.Register("@every "+cfg.ReaperInterval.String(), asynq.NewTask(TypeHoldReap, reapPayload)); err != nil {
		return err
	}
	if _, err := scheduler.Register("@every "+cfg.CountdownTick.String(), asynq.NewTask(TypeHoldTick, nil)); err != nil {
		return err
	}

	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Shutdown()

	if err := srv.Start(mux); err != nil {
		return err
	}

	<-ctx.Done()
	srv.Shutdown()
	log.Info("task server stopped")
	return nil
}
