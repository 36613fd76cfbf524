package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/vibration-stack/common/middleware"
	"github.com/telhawk-systems/vibration-stack/relay/internal/handlers"
)

// NewRouter constructs the relay mux.
func NewRouter(h *handlers.Handler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	// Viewer stream
	mux.HandleFunc("GET /ws/vibrations", h.Stream)

	// Latest record query
	mux.HandleFunc("GET /vibrations/{sensor_id}", h.Latest)
	mux.HandleFunc("GET /vibrations", h.Latest)

	// Health endpoints
	mux.HandleFunc("GET /{$}", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.CORS(cors)(mux))
}
