package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/broadcast"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/clock"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/config"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/database"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/handler"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/observability"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/queue"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/repository"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/router"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/service"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	level := "info"
	if cfg.Env == "dev" {
		level = "debug"
	}
	log := observability.NewLogger(level)

	db, err := database.Open(&cfg)
	if err != nil {
		log.Error("database connection failed: ", err)
		return
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting, caching and cross-instance broadcast are disabled")
	}

	clk := clock.System()
	hub := broadcast.NewHub()
	bcaster := broadcast.NewBroadcaster(rdb, hub, log)

	seats := repository.NewSeatStateRepo(db)
	holds := repository.NewHoldRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	promotions := repository.NewPromotionRepo(db)
	loyalty := repository.NewLoyaltyRepo(db)
	catalog := repository.NewCatalogRepo(db)

	sweeper := service.NewSweeper(db, seats, holds, bookings, bcaster, clk, log)
	reconciler := service.NewReconciler(db, seats, holds, bookings, payments,
		promotions, loyalty, bcaster, clk, log, cfg.EarnPerCents)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Handlers{
		SeatMap:  handler.NewSeatMapHandler(catalog, seats, clk),
		Holds:    handler.NewHoldHandler(catalog, seats, holds, sweeper, bcaster, clk, &cfg, log),
		Bookings: handler.NewBookingHandler(catalog, seats, holds, bookings, payments, promotions, loyalty, clk, &cfg, log),
		Payments: handler.NewPaymentHandler(reconciler, cfg.WebhookSecret, log),
		Events:   handler.NewEventsHandler(hub),
		Admin:    handler.NewAdminHandler(sweeper, log),
	}, &cfg, rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).Info("http server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutCtx)
	})

	if rdb != nil {
		g.Go(func() error { return bcaster.Run(ctx) })
		g.Go(func() error {
			return worker.Run(ctx, &cfg, worker.NewHandlers(sweeper, log), log)
		})
	}

	g.Go(func() error {
		err := queue.StartPaymentConsumer(ctx, func(ctx context.Context, msg queue.PaymentResultMessage) error {
			_, err := reconciler.HandleResult(ctx, msg.PaymentRef, msg.Status, msg.ProviderTxnID)
			return err
		})
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("server exited with error: ", err)
	}
}
