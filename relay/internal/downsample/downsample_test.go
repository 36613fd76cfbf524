package downsample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_Stride(t *testing.T) {
	samples := make([]int16, 10000)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	const ts = uint64(1700000000)
	const period = 1.0 / 32000

	s := Downsample(samples, period, ts, 1000)

	assert.Equal(t, 10000, s.OriginalPoints)
	assert.Equal(t, 1000, s.DownsampledPoints)
	require.Len(t, s.Points, 1000)
	assert.Equal(t, float64(ts), s.Points[0].X)
	assert.InDelta(t, float64(ts)+period*10, s.Points[1].X, 1e-6)
	assert.InDelta(t, float64(ts)+period*10*999, s.Points[999].X, 1e-6)

	// Every 10th sample starting at index 0.
	assert.Equal(t, 0.0, s.Points[0].Y)
	assert.Equal(t, 10.0, s.Points[1].Y)
	assert.Equal(t, 990.0, s.Points[99].Y)
}

func TestDownsample_PointCount(t *testing.T) {
	tests := []struct {
		n, desired, wantStep, wantPoints int
	}{
		{n: 10, desired: 100, wantStep: 1, wantPoints: 10},
		{n: 100, desired: 100, wantStep: 1, wantPoints: 100},
		{n: 199, desired: 100, wantStep: 1, wantPoints: 199},
		{n: 200, desired: 100, wantStep: 2, wantPoints: 100},
		{n: 201, desired: 100, wantStep: 2, wantPoints: 101},
		{n: 16385, desired: 500, wantStep: 32, wantPoints: 513},
		{n: 16385, desired: 1000, wantStep: 16, wantPoints: 1025},
		{n: 5, desired: 0, wantStep: 1, wantPoints: 5},
	}

	for _, tt := range tests {
		step := Step(tt.n, tt.desired)
		assert.Equal(t, tt.wantStep, step, "step for n=%d desired=%d", tt.n, tt.desired)

		s := Downsample(make([]int16, tt.n), 0.001, 0, tt.desired)
		assert.Equal(t, tt.wantPoints, s.DownsampledPoints, "points for n=%d desired=%d", tt.n, tt.desired)
		assert.Equal(t, int(math.Ceil(float64(tt.n)/float64(step))), s.DownsampledPoints)
		assert.Len(t, s.Points, s.DownsampledPoints)
	}
}

func TestDownsample_ExtremaCoverFullSequence(t *testing.T) {
	// The extremes sit at odd indices and are never selected with step 2.
	samples := []int16{0, 32767, 0, -32768, 0, 5}
	s := Downsample(samples, 1, 10, 3)

	require.Equal(t, 2, Step(len(samples), 3))
	assert.Equal(t, []Point{{X: 10, Y: 0}, {X: 12, Y: 0}, {X: 14, Y: 0}}, s.Points)
	require.NotNil(t, s.MaxValue)
	require.NotNil(t, s.MinValue)
	assert.Equal(t, 32767.0, *s.MaxValue)
	assert.Equal(t, -32768.0, *s.MinValue)
}

func TestDownsample_Empty(t *testing.T) {
	s := Downsample(nil, 1.0/32000, 1700000000, 500)

	assert.Equal(t, 0, s.OriginalPoints)
	assert.Equal(t, 0, s.DownsampledPoints)
	assert.NotNil(t, s.Points)
	assert.Empty(t, s.Points)
	assert.Nil(t, s.MaxValue)
	assert.Nil(t, s.MinValue)
}

func TestScaled(t *testing.T) {
	s := Scaled([]int16{20000, -1500, 300}, 0.5, 100, 10, 1000)

	assert.Equal(t, []Point{{X: 100, Y: 20}, {X: 100.5, Y: -1.5}, {X: 101, Y: 0.3}}, s.Points)
	assert.Equal(t, 20.0, *s.MaxValue)
	assert.Equal(t, -1.5, *s.MinValue)

	assert.Equal(t, 1000.0, s.ValueDivisor)

	unscaled := Scaled([]int16{7}, 1, 0, 1, 0)
	assert.Equal(t, 7.0, unscaled.Points[0].Y)
	assert.Equal(t, 1.0, unscaled.ValueDivisor)
}

func TestRound8(t *testing.T) {
	assert.Equal(t, 0.12345679, round8(0.123456789))
	assert.Equal(t, 1700000000.0, round8(1700000000))
}
