package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/telhawk-systems/vibration-stack/common/httputil"
	"github.com/telhawk-systems/vibration-stack/common/messaging"
)

// Pinger reports backing store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports open sensor connections.
type ConnectionCounter interface {
	ActiveConnections() int
}

// HealthHandler serves the ingest admin endpoints.
type HealthHandler struct {
	store Pinger
	conns ConnectionCounter
	nats  messaging.Client
}

func NewHealthHandler(store Pinger, conns ConnectionCounter) *HealthHandler {
	return &HealthHandler{store: store, conns: conns}
}

// SetMessaging adds the notification client to the health report.
func (h *HealthHandler) SetMessaging(client messaging.Client) {
	h.nats = client
}

// Health is a liveness probe; it never touches the store. Notifications are
// best effort, so a broker outage is reported but does not fail the probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":             "healthy",
		"active_connections": h.conns.ActiveConnections(),
	}
	if h.nats != nil {
		body["nats"] = messaging.CheckClientHealth(h.nats)
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// Ready fails while the record store is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"store":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"store":  "ok",
	})
}
