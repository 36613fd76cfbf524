// Package session implements the per-viewer relay loop: sensor selection,
// staleness-gated polling of the record source and delivery of downsampled
// series.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/vibration-stack/common/httputil"
	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/common/records"
	"github.com/telhawk-systems/vibration-stack/relay/internal/downsample"
	"github.com/telhawk-systems/vibration-stack/relay/internal/metrics"
)

// Error kinds sent to viewers.
const (
	KindDataNotFound     = "DataNotFound"
	KindSelectionInvalid = "SelectionInvalid"
	KindStoreUnavailable = "StoreUnavailable"
	KindUnexpectedError  = "UnexpectedError"
)

// State is the position of a session in its lifecycle.
type State int32

const (
	StateNoSelection State = iota
	StateSelectionPending
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNoSelection:
		return "NO_SELECTION"
	case StateSelectionPending:
		return "SELECTION_PENDING"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the relay loop timings and delivery policy.
type Config struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	ReceiveTimeout     time.Duration `mapstructure:"receive_timeout"`
	IdleWait           time.Duration `mapstructure:"idle_wait"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	DesiredPoints      int           `mapstructure:"desired_points"`
	ValueDivisor       float64       `mapstructure:"value_divisor"` // echoed to the viewer
	SendTimeout        time.Duration `mapstructure:"send_timeout"`
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:       200 * time.Millisecond,
		ReceiveTimeout:     100 * time.Millisecond,
		IdleWait:           100 * time.Millisecond,
		StalenessThreshold: 3 * time.Second,
		DesiredPoints:      500,
		ValueDivisor:       1000,
		SendTimeout:        5 * time.Second,
	}
}

// selection is the only message a viewer sends.
type selection struct {
	SensorID *json.Number `json:"sensor_id"`
}

// Session is the state of one viewer connection. Run must be called at most
// once; every field except state is owned by the Run goroutine.
type Session struct {
	id        string
	cfg       Config
	source    records.Source
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	state       atomic.Int32
	sensorID    uint32
	lastID      records.ID
	delivered   bool
	storeFailed bool
}

// New creates a session in NO_SELECTION.
func New(id string, source records.Source, transport Transport, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		source:    source,
		transport: transport,
		logger:    logger.With(logging.SessionID(id)),
		now:       time.Now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state. Safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run drives the session until the viewer disconnects, the transport fails
// or ctx is cancelled. A clean disconnect returns nil.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := s.transport.Receive(s.cfg.ReceiveTimeout)
		switch {
		case err == nil:
			if err := s.handleSelection(ctx, msg); err != nil {
				return s.fail(ctx, err)
			}
			if s.State() != StateStreaming {
				// Selection failed: check again right away.
				continue
			}
		case errors.Is(err, ErrNoMessage):
		case errors.Is(err, ErrClosed):
			s.logger.Info("viewer disconnected")
			return nil
		default:
			s.logger.Warn("viewer transport failed", logging.Error(err))
			return err
		}

		if s.State() != StateStreaming {
			if !sleep(ctx, s.cfg.IdleWait) {
				return nil
			}
			continue
		}

		if err := s.poll(ctx); err != nil {
			return s.fail(ctx, err)
		}
		if !sleep(ctx, s.cfg.PollInterval) {
			return nil
		}
	}
}

// handleSelection validates a selection message and switches sensors. Only
// transport errors are returned.
func (s *Session) handleSelection(ctx context.Context, msg []byte) error {
	var sel selection
	if err := json.Unmarshal(msg, &sel); err != nil || sel.SensorID == nil {
		return s.sendError(ctx, KindSelectionInvalid, `selection message must be {"sensor_id": <int>}`)
	}
	id, err := ParseSensorID(sel.SensorID.String())
	if err != nil {
		return s.sendError(ctx, KindSelectionInvalid, err.Error())
	}

	prev := s.State()
	s.setState(StateSelectionPending)

	exists, err := s.source.Exists(ctx, id)
	if err != nil {
		s.setState(prev)
		s.logger.Warn("sensor lookup failed", logging.SensorID(id), logging.Error(err))
		return s.sendError(ctx, KindStoreUnavailable, fmt.Sprintf("could not look up sensor %d", id))
	}
	if !exists {
		s.setState(StateNoSelection)
		s.delivered = false
		return s.sendError(ctx, KindDataNotFound, fmt.Sprintf("no data found for sensor %d", id))
	}

	s.sensorID = id
	s.delivered = false
	s.lastID = ""
	s.storeFailed = false
	s.setState(StateStreaming)
	s.logger.Info("viewer selected sensor", logging.SensorID(id))
	return nil
}

// poll delivers the latest record when it is new and fresh. Store failures
// are reported to the viewer once per outage; only transport errors are
// returned.
func (s *Session) poll(ctx context.Context) error {
	start := time.Now()
	rec, err := s.source.Latest(ctx, s.sensorID)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, records.ErrNotFound):
		s.storeFailed = false
		return nil
	case err != nil:
		if s.storeFailed {
			return nil
		}
		s.storeFailed = true
		s.logger.Warn("record source unavailable", logging.SensorID(s.sensorID), logging.Error(err))
		return s.sendError(ctx, KindStoreUnavailable, "record store is unavailable, retrying")
	}
	s.storeFailed = false

	if s.delivered && rec.ID == s.lastID {
		return nil
	}
	if !s.fresh(rec.Timestamp) {
		metrics.StaleSuppressed.Inc()
		return nil
	}

	series := downsample.Scaled(rec.Samples, float64(rec.SamplingPeriod), rec.Timestamp, s.cfg.DesiredPoints, s.cfg.ValueDivisor)
	series.SensorID = rec.SensorID

	if err := s.send(ctx, series); err != nil {
		return err
	}
	s.lastID = rec.ID
	s.delivered = true
	metrics.Deliveries.Inc()
	s.logger.Debug("delivered record",
		logging.SensorID(rec.SensorID),
		logging.RecordID(string(rec.ID)),
		slog.Int("points", series.DownsampledPoints))
	return nil
}

// fresh compares whole seconds, the resolution of record timestamps.
func (s *Session) fresh(ts uint64) bool {
	age := s.now().Unix() - int64(ts)
	return age <= int64(s.cfg.StalenessThreshold/time.Second)
}

func (s *Session) sendError(ctx context.Context, kind, details string) error {
	metrics.ErrorsSent.WithLabelValues(kind).Inc()
	return s.send(ctx, httputil.ErrorBody{Error: kind, Details: details})
}

func (s *Session) send(ctx context.Context, v any) error {
	if s.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
	}
	return s.transport.Send(ctx, v)
}

// fail ends the session after a send error. Unless the viewer is already
// gone, it tries once to tell the viewer why.
func (s *Session) fail(ctx context.Context, err error) error {
	if errors.Is(err, ErrClosed) {
		s.logger.Info("viewer disconnected")
		return nil
	}
	s.logger.Warn("send to viewer failed", logging.Error(err))
	_ = s.sendError(ctx, KindUnexpectedError, err.Error())
	return err
}

func (s *Session) close() {
	s.setState(StateClosed)
	_ = s.transport.Close()
}

// ParseSensorID accepts a decimal unsigned 32-bit integer.
func ParseSensorID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("sensor_id %q is not an unsigned 32-bit integer", raw)
	}
	return uint32(id), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
