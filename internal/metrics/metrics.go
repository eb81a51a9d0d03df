package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts persisted bookings by initial status.
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turf",
			Name:      "bookings_created_total",
			Help:      "The total number of bookings created",
		},
		[]string{"status"},
	)

	// BookingRejections counts booking attempts refused by availability or conflict checks.
	BookingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turf",
			Name:      "booking_rejections_total",
			Help:      "The total number of rejected booking attempts",
		},
		[]string{"reason"},
	)

	// PaymentVerifications counts verify calls by outcome.
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turf",
			Name:      "payment_verifications_total",
			Help:      "The total number of payment verification attempts",
		},
		[]string{"result"},
	)

	// Refunds counts issued refunds by mapped status.
	Refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turf",
			Name:      "refunds_total",
			Help:      "The total number of refunds issued",
		},
		[]string{"status"},
	)

	// Scans counts check-in scans by result.
	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turf",
			Name:      "scans_total",
			Help:      "The total number of ticket scans",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration observes handler latency (summary with quantiles 0.5, 0.9 and 0.99).
	HTTPRequestDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "turf",
			Name:       "http_request_duration_seconds",
			Help:       "Time spent serving HTTP requests",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method", "route", "status"},
	)
)
