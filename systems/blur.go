package systems

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// gaussianKernel returns a normalised 1D kernel truncated at 4 sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	inv := 1 / (2 * sigma * sigma)
	for i := -radius; i <= radius; i++ {
		k[i+radius] = math.Exp(-float64(i*i) * inv)
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflectIndex maps i into [0, n) by mirroring across the edges,
// repeating the edge sample (d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// GaussianBlur smooths an n×n row-major field with a separable Gaussian of
// the given sigma. sigma <= 0 returns a copy of src.
func GaussianBlur(src []float64, n int, sigma float64) []float64 {
	out := make([]float64, len(src))
	if sigma <= 0 || n == 0 {
		copy(out, src)
		return out
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	tmp := make([]float64, len(src))

	// Horizontal pass
	for r := 0; r < n; r++ {
		row := src[r*n : (r+1)*n]
		for c := 0; c < n; c++ {
			var sum float64
			for k, w := range kernel {
				sum += w * row[reflectIndex(c+k-radius, n)]
			}
			tmp[r*n+c] = sum
		}
	}

	// Vertical pass
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			var sum float64
			for k, w := range kernel {
				sum += w * tmp[reflectIndex(r+k-radius, n)*n+c]
			}
			out[r*n+c] = sum
		}
	}

	return out
}
