// Package handlers serves the relay HTTP surface: the viewer websocket, the
// latest-record query and health.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/vibration-stack/common/httputil"
	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/common/records"
	"github.com/telhawk-systems/vibration-stack/relay/internal/config"
	"github.com/telhawk-systems/vibration-stack/relay/internal/downsample"
	"github.com/telhawk-systems/vibration-stack/relay/internal/metrics"
	"github.com/telhawk-systems/vibration-stack/relay/internal/session"
	"github.com/telhawk-systems/vibration-stack/relay/internal/transport"
)

// Store is what the handlers need from the record store.
type Store interface {
	records.Source
	Ping(ctx context.Context) error
}

// Handler holds the relay dependencies.
type Handler struct {
	store    Store
	registry *session.Registry
	relay    session.Config
	query    config.QueryConfig
	origins  []string
	logger   *logging.Logger
}

func NewHandler(store Store, registry *session.Registry, cfg *config.Config, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		registry: registry,
		relay:    cfg.Relay,
		query:    cfg.Query,
		origins:  originPatterns(cfg.CORS.AllowedOrigins),
		logger:   logger,
	}
}

// Stream upgrades to a websocket and runs a relay session until the viewer
// leaves.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := transport.Accept(w, r, h.origins)
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("viewer upgrade rejected",
			logging.RemoteAddr(httputil.ClientIP(r)),
			logging.Error(err))
		return
	}

	logger := h.logger.WithContext(r.Context()).With(logging.RemoteAddr(httputil.ClientIP(r)))

	s := session.New(uuid.NewString(), h.store, ws, h.relay, logger)
	logger.Info("viewer connected", logging.SessionID(s.ID()))

	if err := h.registry.Serve(r.Context(), s); err != nil {
		logger.Warn("viewer session ended with error", logging.SessionID(s.ID()), logging.Error(err))
	}
}

// Latest handles GET /vibrations/{sensor_id} and GET /vibrations?sensor_id=N.
// It returns the newest record regardless of age.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("sensor_id")
	if raw == "" {
		raw = r.URL.Query().Get("sensor_id")
	}

	sensorID, err := session.ParseSensorID(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, session.KindSelectionInvalid, err.Error())
		return
	}
	if len(h.query.AllowedSensorIDs) > 0 && !slices.Contains(h.query.AllowedSensorIDs, sensorID) {
		h.logger.WithContext(r.Context()).Warn("query for sensor outside allow-list", logging.SensorID(sensorID))
		h.writeError(w, http.StatusBadRequest, session.KindSelectionInvalid, "sensor_id "+raw+" is not allowed")
		return
	}

	rec, err := h.store.Latest(r.Context(), sensorID)
	switch {
	case errors.Is(err, records.ErrNotFound):
		h.writeError(w, http.StatusNotFound, session.KindDataNotFound, "no data found for sensor "+raw)
		return
	case err != nil:
		h.logger.WithContext(r.Context()).Error("latest record query failed", logging.SensorID(sensorID), logging.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, session.KindStoreUnavailable, "record store is unavailable")
		return
	}

	series := downsample.Scaled(rec.Samples, float64(rec.SamplingPeriod), rec.Timestamp, h.query.DesiredPoints, h.query.ValueDivisor)
	series.SensorID = rec.SensorID

	metrics.QueryRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	httputil.WriteJSON(w, http.StatusOK, series)
}

// HealthResponse is returned by Health.
type HealthResponse struct {
	APIStatus      string `json:"api_status"`
	StoreStatus    string `json:"store_status"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health reports store reachability; 503 while the store is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		APIStatus:      "running",
		StoreStatus:    "connected",
		ActiveSessions: h.registry.Count(),
	}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WithContext(r.Context()).Warn("store ping failed", logging.Error(err))
		resp.StoreStatus = session.KindStoreUnavailable
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, details string) {
	metrics.QueryRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	httputil.WriteError(w, status, kind, details)
}

// originPatterns converts CORS origins to websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		patterns = append(patterns, o)
	}
	return patterns
}
