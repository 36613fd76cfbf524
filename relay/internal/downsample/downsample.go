// Package downsample reduces a sample sequence to a bounded point series by
// stride selection.
package downsample

import "strconv"

// Point is one plotted sample: x in epoch seconds, y in caller units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is the result of Downsample. Max and Min cover every input sample,
// not only the selected ones, and are nil for an empty input. ValueDivisor is
// the factor raw samples were divided by.
type Series struct {
	SensorID          uint32   `json:"sensor_id"`
	SourceTimestamp   uint64   `json:"source_timestamp"`
	SamplingPeriod    float64  `json:"sampling_period"`
	OriginalPoints    int      `json:"original_points"`
	DownsampledPoints int      `json:"downsampled_points"`
	MaxValue          *float64 `json:"max_value,omitempty"`
	MinValue          *float64 `json:"min_value,omitempty"`
	ValueDivisor      float64  `json:"value_divisor"`
	Points            []Point  `json:"data"`
}

// Step returns the stride used for n samples and a target of desired points.
func Step(n, desired int) int {
	if desired <= 0 {
		return 1
	}
	return max(1, n/desired)
}

// Downsample keeps every Step(len(samples), desired)-th sample starting at
// index 0. The i-th kept sample is placed at timestamp + i*period*step,
// rounded to 8 decimal places. Values are not scaled.
func Downsample(samples []int16, period float64, timestamp uint64, desired int) Series {
	return Scaled(samples, period, timestamp, desired, 1)
}

// Scaled is Downsample with every y value and both extrema divided by
// divisor. A divisor of 0 is treated as 1.
func Scaled(samples []int16, period float64, timestamp uint64, desired int, divisor float64) Series {
	if divisor == 0 {
		divisor = 1
	}

	s := Series{
		SourceTimestamp: timestamp,
		SamplingPeriod:  period,
		OriginalPoints:  len(samples),
		ValueDivisor:    divisor,
		Points:          []Point{},
	}
	if len(samples) == 0 {
		return s
	}

	step := Step(len(samples), desired)
	ts := float64(timestamp)
	s.Points = make([]Point, 0, (len(samples)+step-1)/step)
	for i, j := 0, 0; j < len(samples); i, j = i+1, j+step {
		s.Points = append(s.Points, Point{
			X: round8(ts + float64(i)*period*float64(step)),
			Y: float64(samples[j]) / divisor,
		})
	}
	s.DownsampledPoints = len(s.Points)

	lo, hi := samples[0], samples[0]
	for _, v := range samples[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	maxV, minV := float64(hi)/divisor, float64(lo)/divisor
	s.MaxValue, s.MinValue = &maxV, &minV

	return s
}

// round8 rounds to 8 decimal places through the decimal representation;
// scaling by 1e8 would exceed float64 precision for epoch-sized values.
func round8(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 8, 64), 64)
	if err != nil {
		return v
	}
	return r
}
