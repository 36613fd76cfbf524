package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/vibration-stack/common/logging"
	"github.com/telhawk-systems/vibration-stack/common/records"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/metrics"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/ratelimit"
	"github.com/telhawk-systems/vibration-stack/ingest/pkg/frame"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("frame server closed")

// FrameServer accepts sensor connections and appends every decoded frame to
// a records.Sink. Each connection is served by its own goroutine and fails
// independently. There is no limit on concurrent connections; an optional
// Limiter bounds how often one remote host may connect.
type FrameServer struct {
	sink        records.Sink
	limiter     ratelimit.Limiter
	logger      *slog.Logger
	readTimeout time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	fatal  chan error

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// NewFrameServer creates a server. readTimeout bounds each frame read; zero
// disables the deadline.
func NewFrameServer(sink records.Sink, readTimeout time.Duration, logger *slog.Logger) *FrameServer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FrameServer{
		sink:        sink,
		limiter:     ratelimit.NoOp{},
		logger:      logger,
		readTimeout: readTimeout,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		fatal:       make(chan error, 1),
		conns:       make(map[net.Conn]struct{}),
	}
}

// SetLimiter installs connection admission. Call it before Serve.
func (s *FrameServer) SetLimiter(l ratelimit.Limiter) {
	if l == nil {
		l = ratelimit.NoOp{}
	}
	s.limiter = l
}

// ListenAndServe listens on addr and calls Serve.
func (s *FrameServer) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown is called or the sink fails.
// A sink failure closes every connection and is returned so the process can
// apply its restart policy; nothing is retried or buffered.
func (s *FrameServer) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	acceptErr := make(chan error, 1)
	go func() {
		var delay time.Duration
		for {
			conn, err := l.Accept()
			if err != nil {
				if s.isClosing() || !temporaryAcceptError(err) {
					acceptErr <- err
					return
				}
				delay = acceptBackoff(delay)
				metrics.AcceptErrors.Inc()
				s.logger.Warn("accept failed, retrying",
					logging.Error(err),
					slog.Duration("retry_in", delay))
				select {
				case <-time.After(delay):
					continue
				case <-s.ctx.Done():
					acceptErr <- err
					return
				}
			}
			delay = 0
			if !s.track(conn) {
				conn.Close()
				continue
			}
			go s.handle(conn)
		}
	}()

	select {
	case err := <-s.fatal:
		s.closeAll()
		return fmt.Errorf("record sink failed: %w", err)
	case err := <-acceptErr:
		if s.isClosing() {
			return ErrServerClosed
		}
		s.closeAll()
		return fmt.Errorf("accept failed: %w", err)
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}

// temporaryAcceptError reports whether Accept may succeed if retried:
// descriptor or buffer exhaustion, or a peer that aborted before accept.
func temporaryAcceptError(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM,
		syscall.ECONNABORTED, syscall.ECONNRESET, syscall.EINTR, syscall.EAGAIN,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Shutdown stops accepting, closes every open connection and waits for the
// connection goroutines to exit or ctx to expire. Sensors stream without end,
// so there is nothing to drain.
func (s *FrameServer) Shutdown(ctx context.Context) error {
	s.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *FrameServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveConnections returns the number of open sensor connections.
func (s *FrameServer) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *FrameServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	metrics.ConnectionsTotal.Inc()
	metrics.ActiveConnections.Inc()
	return true
}

func (s *FrameServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	metrics.ActiveConnections.Dec()
	s.wg.Done()
}

func (s *FrameServer) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *FrameServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	s.closing = true
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *FrameServer) reportFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

// handle runs the read loop of one connection. Frames are appended in
// arrival order; any read or framing error ends the connection.
func (s *FrameServer) handle(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	log := s.logger.With(
		logging.ConnID(uuid.NewString()),
		logging.RemoteAddr(conn.RemoteAddr().String()),
	)
	if !s.admit(log, conn.RemoteAddr()) {
		return
	}
	log.Debug("sensor connected")

	reader := frame.NewReader(conn)
	for {
		if s.readTimeout > 0 {
			_ = conn.SetReadDeadline(s.now().Add(s.readTimeout))
		}

		f, err := reader.ReadFrame()
		if err != nil {
			s.logReadError(log, err)
			return
		}
		metrics.FrameBytesTotal.Add(float64(f.PayloadLen()))

		rec := &records.Record{
			SensorID:       f.SensorID,
			Timestamp:      f.Epoch,
			SamplingPeriod: f.SamplingPeriod,
			LenTimeBytes:   f.LenTimeBytes,
			LenFreqBytes:   f.LenFreqBytes,
			Samples:        f.Samples,
			ReceivedAt:     s.now().UTC(),
		}

		start := time.Now()
		id, err := s.sink.Append(s.ctx, rec)
		metrics.AppendDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if s.isClosing() {
				return
			}
			metrics.AppendErrors.Inc()
			log.Error("failed to append record",
				logging.SensorID(f.SensorID),
				logging.Error(err))
			s.reportFatal(err)
			return
		}
		metrics.FramesTotal.Inc()

		log.Debug("frame stored",
			logging.SensorID(f.SensorID),
			logging.RecordID(string(id)),
			logging.Samples(len(f.Samples)))
	}
}

// admit consults the limiter. A limiter failure admits the connection.
func (s *FrameServer) admit(log *slog.Logger, addr net.Addr) bool {
	host := addr.String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	allowed, err := s.limiter.Allow(s.ctx, host)
	if err != nil {
		log.Warn("connection rate limit check failed", logging.Error(err))
		return true
	}
	if !allowed {
		metrics.ConnectionsRejected.Inc()
		log.Warn("connection rate limit exceeded, closing")
	}
	return allowed
}

func (s *FrameServer) logReadError(log *slog.Logger, err error) {
	var framingErr *frame.FramingError
	switch {
	case errors.Is(err, frame.ErrConnectionClosed):
		log.Debug("sensor disconnected")
	case errors.As(err, &framingErr):
		metrics.FramingErrors.WithLabelValues(string(framingErr.Kind)).Inc()
		log.Warn("closing connection on framing error", logging.Error(err))
	case s.isClosing():
		log.Debug("connection closed by shutdown")
	default:
		log.Warn("connection read failed", logging.Error(err))
	}
}
