package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_connections_total",
			Help: "Total number of accepted sensor connections",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibration_ingest_active_connections",
			Help: "Number of currently open sensor connections",
		},
	)

	AcceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_accept_errors_total",
			Help: "Total number of transient accept errors retried by the frame server",
		},
	)

	ConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_connections_rejected_total",
			Help: "Total number of sensor connections closed by the rate limiter",
		},
	)

	// Frame metrics
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_frames_total",
			Help: "Total number of frames decoded and stored",
		},
	)

	FrameBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_frame_bytes_total",
			Help: "Total bytes of frame payload received",
		},
	)

	FramingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibration_ingest_framing_errors_total",
			Help: "Total number of connections closed by a framing error",
		},
		[]string{"kind"},
	)

	// Storage metrics
	AppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibration_ingest_append_duration_seconds",
			Help:    "Duration of record append operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibration_ingest_append_errors_total",
			Help: "Total number of failed record appends",
		},
	)
)
