package cmd

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/telhawk-systems/vibration-stack/cli/internal/client"
	"github.com/telhawk-systems/vibration-stack/cli/pkg/color"
	"github.com/telhawk-systems/vibration-stack/common/messaging"
	"github.com/telhawk-systems/vibration-stack/ingest/pkg/frame"
)

// execute runs vibectl with args against a throwaway config file. Flags keep
// their values between runs, so every test passes the flags it relies on.
func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	prev := color.Enabled
	color.Enabled = false
	t.Cleanup(func() { color.Enabled = prev })

	if configPath == "" {
		configPath = filepath.Join(t.TempDir(), "config.yaml")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"simulate": false,
		"watch":    false,
		"latest":   false,
		"events":   false,
		"config":   false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "expected command %q to be registered", name)
	}
}

func TestParseSensorID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "32418", want: 32418},
		{in: "0x7EA2", want: 0x7EA2},
		{in: "4294967295", want: 4294967295},
		{in: "4294967296", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSensorID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventsSubject(t *testing.T) {
	subject, err := eventsSubject(nil)
	require.NoError(t, err)
	assert.Equal(t, messaging.SubjectRecordsIngestedAll, subject)

	subject, err = eventsSubject([]string{"32418"})
	require.NoError(t, err)
	assert.Equal(t, "vibration.records.ingested.32418", subject)

	_, err = eventsSubject([]string{"nope"})
	assert.Error(t, err)
}

func relayServer(t *testing.T) *httptest.Server {
	t.Helper()
	maxV, minV := 0.1, -0.1
	series := client.Series{
		SensorID:          32417,
		SourceTimestamp:   1700000000,
		SamplingPeriod:    0.00003125,
		OriginalPoints:    4,
		DownsampledPoints: 2,
		MaxValue:          &maxV,
		MinValue:          &minV,
		ValueDivisor:      1000,
		Points:            []client.Point{{X: 1700000000, Y: 0.1}, {X: 1700000000.0000625, Y: 0.1}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /vibrations/{sensor_id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.PathValue("sensor_id") != "32417" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "DataNotFound", "details": "no data found"})
			return
		}
		json.NewEncoder(w).Encode(series)
	})
	mux.HandleFunc("GET /ws/vibrations", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		var sel map[string]uint32
		if err := wsjson.Read(r.Context(), conn, &sel); err != nil {
			return
		}
		_ = wsjson.Write(r.Context(), conn, series)
		_, _, _ = conn.Read(r.Context())
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLatest_JSON(t *testing.T) {
	srv := relayServer(t)

	out, err := execute(t, "", "latest", "32417", "--relay-url", srv.URL, "-o", "json")
	require.NoError(t, err)

	var got client.Series
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, uint32(32417), got.SensorID)
	assert.Equal(t, 1000.0, got.ValueDivisor)
	assert.Len(t, got.Points, 2)
}

func TestLatest_Table(t *testing.T) {
	srv := relayServer(t)

	out, err := execute(t, "", "latest", "32417", "--relay-url", srv.URL, "-o", "table", "--points", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "2023-11-14T22:13:20Z")
	assert.Contains(t, out, "data[0]")
	assert.NotContains(t, out, "data[1]")
}

func TestLatest_NotFound(t *testing.T) {
	srv := relayServer(t)

	_, err := execute(t, "", "latest", "7", "--relay-url", srv.URL, "-o", "json")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "DataNotFound", apiErr.Kind)
}

func TestLatest_InvalidSensorID(t *testing.T) {
	_, err := execute(t, "", "latest", "not-a-number", "-o", "json")
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	srv := relayServer(t)

	out, err := execute(t, "", "watch", "32417", "--relay-url", srv.URL, "--count", "1", "-o", "json")
	require.NoError(t, err)

	var line streamLine
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, uint32(32417), line.SensorID)
	assert.Equal(t, 2, line.Points)
	assert.Equal(t, client.Point{X: 1700000000, Y: 0.1}, line.First)
}

func TestSimulate(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	var (
		mu     sync.Mutex
		frames []*frame.Frame
	)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := frame.NewReader(conn)
				for {
					f, err := r.ReadFrame()
					if err != nil {
						return
					}
					mu.Lock()
					frames = append(frames, f)
					mu.Unlock()
				}
			}()
		}
	}()

	out, err := execute(t, "", "simulate",
		"--addr", l.Addr().String(),
		"--sensor-id", "0x10",
		"--count", "2",
		"--interval", "1ms",
		"--time-samples", "8",
		"--freq-samples", "1",
		"--seed", "3",
		"-o", "table",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 2 frames")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, f := range frames {
		assert.Equal(t, uint32(0x10), f.SensorID)
		assert.Len(t, f.Samples, 9)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vibectl", "config.yaml")

	out, err := execute(t, path, "config", "init", "--force=false", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "relay_url:"))

	_, err = execute(t, path, "config", "init", "--force=false", "-o", "table")
	assert.Error(t, err)
}
