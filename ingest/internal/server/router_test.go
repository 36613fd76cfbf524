package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/vibration-stack/common/middleware"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/handlers"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type zeroCounter struct{}

func (zeroCounter) ActiveConnections() int { return 0 }

func TestAdminRouter_Endpoints(t *testing.T) {
	router := NewAdminRouter(handlers.NewHealthHandler(okPinger{}, zeroCounter{}))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestAdminRouter_UnknownPath(t *testing.T) {
	router := NewAdminRouter(handlers.NewHealthHandler(okPinger{}, zeroCounter{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/collector/event", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
