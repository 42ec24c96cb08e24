package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters and histograms describing the hot path of the engine.  All
// are registered through promauto at package init and served on
// /metrics.
var (
	HoldRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviehub_hold_requests_total",
			Help: "Hold requests by outcome (granted, conflict, rejected)",
		},
		[]string{"outcome"},
	)

	SeatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviehub_seat_conflicts_total",
			Help: "Seat transitions that failed the expected-state guard",
		},
	)

	BookingsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviehub_bookings_confirmed_total",
			Help: "Bookings driven to CONFIRMED by payment reconciliation",
		},
	)

	PaymentMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviehub_payment_mismatches_total",
			Help: "Completed payments arriving after hold expiry (refund path)",
		},
	)

	HoldsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviehub_holds_reaped_total",
			Help: "Expired holds released by the background reaper",
		},
	)

	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviehub_broadcast_events_total",
			Help: "Seat-map events published, by type",
		},
		[]string{"type"},
	)

	TxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviehub_tx_seconds",
			Help:    "Duration of seat-transition transactions",
			Buckets: prometheus.DefBuckets,
		},
	)
)
