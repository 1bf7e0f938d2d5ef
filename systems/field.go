package systems

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// normEpsilon is the largest field maximum treated as an all-zero field.
const normEpsilon = 1e-12

// Humidity bounds. A cluster field in [0, 1] maps onto this range.
const (
	HumidityMin = 0.5
	HumidityMax = 1.5
)

// FieldParams controls cluster field generation.
type FieldParams struct {
	MinClusters  int
	MaxClusters  int
	SigmaMin     float64
	SigmaMax     float64
	NoiseScale   float64 // blur sigma of the wobble noise
	AmplitudeMin float64
	AmplitudeMax float64
}

// Cluster is one Gaussian blob of a cluster field.
type Cluster struct {
	CX, CY         float64 // centre; CX runs along columns, CY along rows
	Amplitude      float64
	SigmaX, SigmaY float64
}

// ClusterField is a generated field together with the clusters that built it.
type ClusterField struct {
	N        int
	Values   []float64 // row-major, normalised to [0, 1]
	Clusters []Cluster
}

// linspace returns n evenly spaced samples over [0, span], endpoints included.
func linspace(span float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	step := span / float64(n-1)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}

// GenerateClusterField builds a smooth n×n field in [0, 1] by superposing
// randomly placed Gaussian blobs whose centres wobble per cell with blurred
// noise. Draw order is fixed so equal seeds give equal fields.
func GenerateClusterField(rng *RNG, n int, p FieldParams) *ClusterField {
	k := rng.IntRange(p.MinClusters, p.MaxClusters)

	clusters := make([]Cluster, k)
	for i := range clusters {
		clusters[i].CX = rng.Uniform(0, float64(n))
		clusters[i].CY = rng.Uniform(0, float64(n))
	}
	for i := range clusters {
		clusters[i].Amplitude = rng.Uniform(p.AmplitudeMin, p.AmplitudeMax)
	}
	for i := range clusters {
		clusters[i].SigmaX = rng.Uniform(p.SigmaMin, p.SigmaMax)
		clusters[i].SigmaY = rng.Uniform(p.SigmaMin, p.SigmaMax)
	}

	raw := make([]float64, n*n)
	rng.Fill(raw)
	noiseX := GaussianBlur(raw, n, p.NoiseScale)
	rng.Fill(raw)
	noiseY := GaussianBlur(raw, n, p.NoiseScale)

	axis := linspace(float64(n), n)
	values := make([]float64, n*n)
	for _, cl := range clusters {
		invX := 1 / (2 * cl.SigmaX * cl.SigmaX)
		invY := 1 / (2 * cl.SigmaY * cl.SigmaY)
		for r := 0; r < n; r++ {
			y := axis[r]
			for c := 0; c < n; c++ {
				i := r*n + c
				dx := axis[c] - (cl.CX + noiseX[i])
				dy := y - (cl.CY + noiseY[i])
				values[i] += cl.Amplitude * math.Exp(-(dx*dx*invX + dy*dy*invY))
			}
		}
	}

	Normalize(values)
	return &ClusterField{N: n, Values: values, Clusters: clusters}
}

// Normalize divides v by its maximum and clips to [0, 1] in place.
// A field whose maximum is not positive is left untouched.
func Normalize(v []float64) {
	if len(v) == 0 {
		return
	}
	peak := floats.Max(v)
	if peak <= normEpsilon {
		return
	}
	floats.Scale(1/peak, v)
	for i, x := range v {
		v[i] = math.Max(0, math.Min(1, x))
	}
}

// PlaceTrees marks the top density fraction of the jittered field as Tree.
// density <= 0 yields no trees and density >= 1 fills every cell.
func PlaceTrees(rng *RNG, g *Grid, field []float64, density, jitter float64) {
	cells := g.Cells()
	switch {
	case density <= 0:
		return
	case density >= 1:
		g.Fill(Tree)
		return
	}

	jittered := make([]float64, len(field))
	for i, v := range field {
		jittered[i] = v + rng.Normal(0, jitter)
	}

	sorted := make([]float64, len(jittered))
	copy(sorted, jittered)
	sort.Float64s(sorted)
	threshold := stat.Quantile(1-density, stat.Empirical, sorted, nil)

	for i, v := range jittered {
		if v > threshold {
			cells[i] = Tree
		}
	}
}

// HumidityFromField shifts a normalised field into [HumidityMin, HumidityMax].
func HumidityFromField(field []float64) []float64 {
	h := make([]float64, len(field))
	for i, v := range field {
		h[i] = HumidityMin + v
	}
	return h
}

// FloodWater turns every cell whose humidity reaches threshold into Water.
func FloodWater(g *Grid, humidity []float64, threshold float64) {
	cells := g.Cells()
	for i, h := range humidity {
		if h >= threshold {
			cells[i] = Water
		}
	}
}
