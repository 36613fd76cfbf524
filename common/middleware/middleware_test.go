package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generates new request ID when not present", incoming: ""},
		{name: "propagates existing request ID", incoming: "existing-req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, captured, rr.Header().Get(RequestIDHeader))
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, captured)
			} else {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Equal(t, "abc", GetRequestID(WithRequestID(context.Background(), "abc")))
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		allowed        []string
		origin         string
		method         string
		expectedOrigin string
		expectedStatus int
	}{
		{
			name:           "wildcard allows any origin",
			allowed:        []string{"*"},
			origin:         "http://dashboard.local",
			method:         http.MethodGet,
			expectedOrigin: "http://dashboard.local",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "exact match",
			allowed:        []string{"https://example.com"},
			origin:         "https://example.com",
			method:         http.MethodGet,
			expectedOrigin: "https://example.com",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "suffix wildcard",
			allowed:        []string{"*.example.com"},
			origin:         "https://app.example.com",
			method:         http.MethodGet,
			expectedOrigin: "https://app.example.com",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "origin rejected",
			allowed:        []string{"https://example.com"},
			origin:         "https://evil.com",
			method:         http.MethodGet,
			expectedOrigin: "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "preflight short-circuits",
			allowed:        []string{"*"},
			origin:         "https://example.com",
			method:         http.MethodOptions,
			expectedOrigin: "https://example.com",
			expectedStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowed

			req := httptest.NewRequest(tt.method, "/vibrations/1", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			CORS(cfg)(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "300", rr.Header().Get("Access-Control-Max-Age"))
		})
	}
}
