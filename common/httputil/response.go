// Package httputil holds the small HTTP helpers shared by the relay and ingest admin APIs.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// ErrorBody is the error shape returned to viewers, over HTTP and websocket alike.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// WriteJSON writes a JSON response with the given status code and data.
// Encoding failures are logged since the header is already sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError writes an ErrorBody with a machine-readable kind and a detail string.
func WriteError(w http.ResponseWriter, status int, kind, details string) {
	WriteJSON(w, status, ErrorBody{Error: kind, Details: details})
}

// ClientIP returns the originating client address, honouring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
