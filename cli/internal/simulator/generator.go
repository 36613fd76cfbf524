// Package simulator produces synthetic vibration frames and sends them to
// the ingest listener the way a field sensor would.
package simulator

import (
	"fmt"
	"math"

	"github.com/brianvoe/gofakeit/v6"
)

// Distribution selects how sample values are drawn.
type Distribution string

const (
	Gaussian Distribution = "gaussian"
	Uniform  Distribution = "uniform"
)

// Generator draws int16 samples. It is not safe for concurrent use.
type Generator struct {
	faker  *gofakeit.Faker
	dist   Distribution
	mean   float64
	stddev float64
}

// NewGenerator returns a generator seeded with seed; 0 picks a random seed.
func NewGenerator(seed int64, dist Distribution, mean, stddev float64) (*Generator, error) {
	switch dist {
	case Gaussian, Uniform:
	default:
		return nil, fmt.Errorf("unknown distribution %q", dist)
	}
	return &Generator{
		faker:  gofakeit.New(seed),
		dist:   dist,
		mean:   mean,
		stddev: stddev,
	}, nil
}

// Samples returns n values. Gaussian draws are clamped to the int16 range.
func (g *Generator) Samples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = g.next()
	}
	return out
}

func (g *Generator) next() int16 {
	if g.dist == Uniform {
		return int16(g.faker.IntRange(math.MinInt16, math.MaxInt16))
	}
	v := math.Round(g.faker.Rand.NormFloat64()*g.stddev + g.mean)
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}
