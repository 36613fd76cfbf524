package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibration_relay_active_sessions",
			Help: "Number of connected viewer sessions",
		},
	)

	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_relay_deliveries_total",
			Help: "Total number of downsampled series delivered to viewers",
		},
	)

	StaleSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_relay_stale_suppressed_total",
			Help: "Total number of new records withheld because they were stale",
		},
	)

	ErrorsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibration_relay_errors_sent_total",
			Help: "Total number of error messages sent to viewers",
		},
		[]string{"kind"},
	)

	// Store metrics
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibration_relay_poll_duration_seconds",
			Help:    "Duration of latest-record lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query endpoint metrics
	QueryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibration_relay_query_requests_total",
			Help: "Total number of query endpoint requests",
		},
		[]string{"status"},
	)
)
