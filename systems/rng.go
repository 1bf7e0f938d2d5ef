package systems

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is the single random stream owned by a simulation. It is not safe for
// concurrent use; workers receive pre-drawn values instead.
type RNG struct {
	src *rand.PCG
	r   *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed int64) *RNG {
	src := rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)
	return &RNG{src: src, r: rand.New(src)}
}

// Float64 returns a uniform value in [0, 1).
func (g *RNG) Float64() float64 { return g.r.Float64() }

// Uniform returns a uniform value in [lo, hi).
func (g *RNG) Uniform(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

// IntRange returns a uniform integer in [lo, hi], inclusive.
func (g *RNG) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

// Normal returns a draw from N(mean, std²).
func (g *RNG) Normal(mean, std float64) float64 {
	if std <= 0 {
		return mean
	}
	return distuv.Normal{Mu: mean, Sigma: std, Src: g.src}.Rand()
}

// Fill writes uniform [0, 1) values into buf.
func (g *RNG) Fill(buf []float64) {
	for i := range buf {
		buf[i] = g.r.Float64()
	}
}
