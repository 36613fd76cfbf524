package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/vibration-stack/common/middleware"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/handlers"
)

// NewAdminRouter constructs the ingest admin mux: probes and metrics.
func NewAdminRouter(h *handlers.HealthHandler) http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
