package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]int{"sensor_id": 32417})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]int
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, 32417, body["sensor_id"])
}

func TestWriteJSON_InvalidData(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusNotFound, "DataNotFound", "no records for sensor 7")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, ErrorBody{Error: "DataNotFound", Details: "no records for sensor 7"}, body)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, remote: "10.0.0.1:1234", want: "203.0.113.195"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:1234", want: "198.51.100.7"},
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1:5555"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
