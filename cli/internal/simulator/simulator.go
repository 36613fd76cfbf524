package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/ingest/pkg/frame"
)

// Config describes the frames a Simulator sends.
type Config struct {
	Addr           string
	SensorID       uint32
	SamplingPeriod float32
	TimeSamples    int
	FreqSamples    int
	Interval       time.Duration
	// Count stops the run after that many frames; 0 runs until cancelled.
	Count int
	// PerFrameConnection dials a fresh connection for every frame.
	PerFrameConnection bool
	DialTimeout        time.Duration
}

// Stats summarizes a run.
type Stats struct {
	Sent   int
	Failed int
}

// Simulator sends one frame per interval to an ingest listener.
type Simulator struct {
	cfg    Config
	gen    *Generator
	logger *slog.Logger
	now    func() time.Time

	conn net.Conn
}

func New(cfg Config, gen *Generator, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Simulator{
		cfg:    cfg,
		gen:    gen,
		logger: logger.With(logging.SensorID(cfg.SensorID)),
		now:    time.Now,
	}
}

// NextFrame builds a frame stamped with the current time.
func (s *Simulator) NextFrame() *frame.Frame {
	return &frame.Frame{
		Header: frame.Header{
			SensorID:       s.cfg.SensorID,
			Epoch:          uint64(s.now().Unix()),
			LenTimeBytes:   uint16(s.cfg.TimeSamples * frame.SampleSize),
			LenFreqBytes:   uint16(s.cfg.FreqSamples * frame.SampleSize),
			SamplingPeriod: s.cfg.SamplingPeriod,
		},
		Samples: s.gen.Samples(s.cfg.TimeSamples + s.cfg.FreqSamples),
	}
}

// Run sends frames until ctx is cancelled or Count frames were attempted.
// Send failures are logged and retried on the next tick with a new
// connection.
func (s *Simulator) Run(ctx context.Context) Stats {
	defer s.disconnect()

	var stats Stats
	for attempt := 0; s.cfg.Count == 0 || attempt < s.cfg.Count; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return stats
			case <-time.After(s.cfg.Interval):
			}
		}
		if ctx.Err() != nil {
			return stats
		}

		if err := s.send(ctx, s.NextFrame()); err != nil {
			stats.Failed++
			s.logger.Warn("failed to send frame", logging.Error(err))
			continue
		}
		stats.Sent++
		s.logger.Debug("frame sent", slog.Int("sent", stats.Sent))
	}
	return stats
}

func (s *Simulator) send(ctx context.Context, f *frame.Frame) error {
	if s.conn == nil {
		d := net.Dialer{Timeout: s.cfg.DialTimeout}
		conn, err := d.DialContext(ctx, "tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", s.cfg.Addr, err)
		}
		s.conn = conn
	}

	err := frame.Write(s.conn, f)
	if err != nil || s.cfg.PerFrameConnection {
		s.disconnect()
	}
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Simulator) disconnect() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
