// Package client talks to the relay's HTTP and websocket endpoints.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Point is one downsampled sample.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Series is the relay's downsampled view of one record.
type Series struct {
	SensorID          uint32   `json:"sensor_id" yaml:"sensor_id"`
	SourceTimestamp   uint64   `json:"source_timestamp" yaml:"source_timestamp"`
	SamplingPeriod    float64  `json:"sampling_period" yaml:"sampling_period"`
	OriginalPoints    int      `json:"original_points" yaml:"original_points"`
	DownsampledPoints int      `json:"downsampled_points" yaml:"downsampled_points"`
	MaxValue          *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	MinValue          *float64 `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	ValueDivisor      float64  `json:"value_divisor" yaml:"value_divisor"`
	Points            []Point  `json:"data" yaml:"data"`
}

// Health is the relay's status report.
type Health struct {
	APIStatus      string `json:"api_status" yaml:"api_status"`
	StoreStatus    string `json:"store_status" yaml:"store_status"`
	ActiveSessions int    `json:"active_sessions" yaml:"active_sessions"`
}

// APIError is an error body returned by the relay, over HTTP or websocket.
type APIError struct {
	Status  int    `json:"-" yaml:"-"`
	Kind    string `json:"error" yaml:"error"`
	Details string `json:"details" yaml:"details"`
}

func (e *APIError) Error() string {
	if e.Details == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Details
}

// RelayClient calls one relay instance.
type RelayClient struct {
	baseURL string
	client  *http.Client
}

// NewRelayClient creates a RelayClient pointing at the given base URL.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Latest fetches the newest record for a sensor, downsampled by the relay.
func (c *RelayClient) Latest(ctx context.Context, sensorID uint32) (*Series, error) {
	var series Series
	path := "/vibrations/" + strconv.FormatUint(uint64(sensorID), 10)
	if err := c.get(ctx, path, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// Health fetches the relay status. A 503 still decodes the body, which
// carries the failing store status, and returns it with an error.
func (c *RelayClient) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &h, fmt.Errorf("relay unhealthy (status %d): store %s", resp.StatusCode, h.StoreStatus)
	}
	return &h, nil
}

func (c *RelayClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Kind == "" {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Delivery is one message pushed by the relay on a stream: either a
// series or an error report.
type Delivery struct {
	Series *Series
	Err    *APIError
}

// StreamURL maps the relay base URL onto its websocket endpoint.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported relay URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/vibrations"
	return u.String(), nil
}

// Watch opens a stream, selects sensorID and calls fn for every delivery
// until ctx is cancelled, fn returns an error, or the relay closes the
// stream. Cancellation, ErrStop and a normal close return nil.
func (c *RelayClient) Watch(ctx context.Context, sensorID uint32, fn func(Delivery) error) error {
	wsURL, err := StreamURL(c.baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	selection := map[string]uint32{"sensor_id": sensorID}
	if err := wsjson.Write(ctx, conn, selection); err != nil {
		return fmt.Errorf("failed to send selection: %w", err)
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}

		d, err := decodeDelivery(raw)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func decodeDelivery(raw json.RawMessage) (Delivery, error) {
	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Delivery{}, fmt.Errorf("failed to decode delivery: %w", err)
	}
	if envelope.Error != nil {
		var apiErr APIError
		if err := json.Unmarshal(raw, &apiErr); err != nil {
			return Delivery{}, fmt.Errorf("failed to decode error: %w", err)
		}
		return Delivery{Err: &apiErr}, nil
	}

	var s Series
	if err := json.Unmarshal(raw, &s); err != nil {
		return Delivery{}, fmt.Errorf("failed to decode series: %w", err)
	}
	return Delivery{Series: &s}, nil
}

// ErrStop may be returned from a Watch callback to end the stream quietly.
var ErrStop = errors.New("stop watching")
