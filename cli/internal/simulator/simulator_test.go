package simulator

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/vibration-stack/ingest/pkg/frame"
)

func TestGenerator_UnknownDistribution(t *testing.T) {
	_, err := NewGenerator(1, "poisson", 0, 0)
	assert.Error(t, err)
}

func TestGenerator_Deterministic(t *testing.T) {
	a, err := NewGenerator(42, Gaussian, 20000, 3000)
	require.NoError(t, err)
	b, err := NewGenerator(42, Gaussian, 20000, 3000)
	require.NoError(t, err)

	assert.Equal(t, a.Samples(64), b.Samples(64))
}

func TestGenerator_Gaussian(t *testing.T) {
	g, err := NewGenerator(7, Gaussian, 20000, 3000)
	require.NoError(t, err)

	samples := g.Samples(10000)
	require.Len(t, samples, 10000)

	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	assert.InDelta(t, 20000, sum/float64(len(samples)), 200)
}

func TestGenerator_GaussianClamped(t *testing.T) {
	g, err := NewGenerator(7, Gaussian, 40000, 1)
	require.NoError(t, err)

	for _, s := range g.Samples(100) {
		assert.Equal(t, int16(32767), s)
	}
}

func TestGenerator_Uniform(t *testing.T) {
	g, err := NewGenerator(7, Uniform, 0, 0)
	require.NoError(t, err)

	var neg, pos bool
	for _, s := range g.Samples(1000) {
		neg = neg || s < 0
		pos = pos || s > 0
	}
	assert.True(t, neg && pos, "uniform samples should span both signs")
}

// collector accepts connections and decodes every frame it receives.
type collector struct {
	listener net.Listener
	mu       sync.Mutex
	frames   []*frame.Frame
	conns    int
	wg       sync.WaitGroup
}

func newCollector(t *testing.T) *collector {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	c := &collector{listener: l}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			c.mu.Lock()
			c.conns++
			c.mu.Unlock()
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer conn.Close()
				r := frame.NewReader(conn)
				for {
					f, err := r.ReadFrame()
					if err != nil {
						return
					}
					c.mu.Lock()
					c.frames = append(c.frames, f)
					c.mu.Unlock()
				}
			}()
		}
	}()
	t.Cleanup(func() {
		l.Close()
		c.wg.Wait()
	})
	return c
}

func (c *collector) snapshot() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames), c.conns
}

func (c *collector) waitFrames(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, _ := c.snapshot()
		return got >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func testConfig(addr string) Config {
	return Config{
		Addr:           addr,
		SensorID:       0x7EA2,
		SamplingPeriod: 1.0 / 32000,
		TimeSamples:    16,
		FreqSamples:    1,
		Interval:       time.Millisecond,
		Count:          3,
	}
}

func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	gen, err := NewGenerator(1, Gaussian, 20000, 3000)
	require.NoError(t, err)
	sim := New(cfg, gen, nil)
	sim.now = func() time.Time { return time.Unix(1700000000, 0) }
	return sim
}

func TestSimulator_NextFrame(t *testing.T) {
	sim := newTestSimulator(t, testConfig("unused"))

	f := sim.NextFrame()
	assert.Equal(t, uint32(0x7EA2), f.SensorID)
	assert.Equal(t, uint64(1700000000), f.Epoch)
	assert.Equal(t, uint16(32), f.LenTimeBytes)
	assert.Equal(t, uint16(2), f.LenFreqBytes)
	assert.Equal(t, float32(1.0/32000), f.SamplingPeriod)
	assert.Len(t, f.Samples, 17)
	assert.NoError(t, frame.ValidateLengths(f.Header))
}

func TestSimulator_PersistentConnection(t *testing.T) {
	c := newCollector(t)
	sim := newTestSimulator(t, testConfig(c.listener.Addr().String()))

	stats := sim.Run(context.Background())
	assert.Equal(t, Stats{Sent: 3}, stats)

	c.waitFrames(t, 3)
	frames, conns := c.snapshot()
	assert.Equal(t, 3, frames)
	assert.Equal(t, 1, conns)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		assert.Equal(t, uint32(0x7EA2), f.SensorID)
		assert.Len(t, f.Samples, 17)
	}
}

func TestSimulator_PerFrameConnection(t *testing.T) {
	c := newCollector(t)
	cfg := testConfig(c.listener.Addr().String())
	cfg.PerFrameConnection = true
	sim := newTestSimulator(t, cfg)

	stats := sim.Run(context.Background())
	assert.Equal(t, Stats{Sent: 3}, stats)

	c.waitFrames(t, 3)
	_, conns := c.snapshot()
	assert.Equal(t, 3, conns)
}

func TestSimulator_DialFailureCounted(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := testConfig(addr)
	cfg.Count = 2
	cfg.DialTimeout = 200 * time.Millisecond
	sim := newTestSimulator(t, cfg)

	stats := sim.Run(context.Background())
	assert.Equal(t, Stats{Failed: 2}, stats)
}

func TestSimulator_StopsOnCancel(t *testing.T) {
	c := newCollector(t)
	cfg := testConfig(c.listener.Addr().String())
	cfg.Count = 0
	cfg.Interval = 10 * time.Millisecond
	sim := newTestSimulator(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Stats, 1)
	go func() { done <- sim.Run(ctx) }()

	c.waitFrames(t, 2)
	cancel()

	select {
	case stats := <-done:
		assert.GreaterOrEqual(t, stats.Sent, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
}
