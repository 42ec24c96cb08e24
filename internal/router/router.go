// Package router wires the HTTP routes to their handlers and
// middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/config"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/handler"
	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/middleware"
)

// Handlers bundles everything the router needs to register.
type Handlers struct {
	SeatMap  *handler.SeatMapHandler
	Holds    *handler.HoldHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Events   *handler.EventsHandler
	Admin    *handler.AdminHandler
}

// Register wires all routes.  The seat map, its event stream and the
// payment webhook are unauthenticated; everything that mutates seats
// or bookings sits behind JWT auth, with the Redis token bucket on the
// contention-heavy routes.
func Register(e *echo.Echo, h Handlers, cfg *config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Public browse surface.  The seat map gets a very short Redis
	// response cache to absorb refresh storms.
	seatMapCache := middleware.NewSeatMapCache(config.LoadCacheConfig(), rdb)
	e.GET("/v1/showtimes/:id/seat-map", h.SeatMap.Get, seatMapCache)
	e.GET("/v1/showtimes/:id/events", h.Events.Stream)

	// Payment provider callback, authenticated by shared secret.
	e.POST("/v1/payments/webhook", h.Payments.Webhook)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	limited := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	auth.POST("/showtimes/:id/holds", h.Holds.Create, limited)
	auth.PATCH("/holds/:id", h.Holds.Renew, limited)
	auth.DELETE("/holds/:id", h.Holds.Release, limited)

	auth.POST("/bookings", h.Bookings.Create, limited)
	auth.PATCH("/bookings/:id", h.Bookings.Update, limited)
	auth.GET("/bookings/:id", h.Bookings.Get)
	auth.POST("/bookings/:id/checkout", h.Bookings.Checkout, limited)
	auth.GET("/my-bookings", h.Bookings.List)

	admin := auth.Group("/admin", middleware.RequireRole("ADMIN", "STAFF"))
	admin.POST("/holds/sweep", h.Admin.SweepHolds)
}
