package systems

import (
	"math"
	"testing"
)

func smallFieldParams() FieldParams {
	return FieldParams{
		MinClusters:  3,
		MaxClusters:  5,
		SigmaMin:     3,
		SigmaMax:     8,
		NoiseScale:   2,
		AmplitudeMin: 0.5,
		AmplitudeMax: 1.0,
	}
}

func TestReflectIndex(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 4, 0},
		{3, 4, 3},
		{-1, 4, 0},
		{-2, 4, 1},
		{4, 4, 3},
		{5, 4, 2},
		{8, 4, 0},
		{-5, 4, 3},
		{-9, 4, 0},
		{0, 1, 0},
		{7, 1, 0},
	}
	for _, tt := range tests {
		if got := reflectIndex(tt.i, tt.n); got != tt.want {
			t.Errorf("reflectIndex(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestGaussianKernelNormalised(t *testing.T) {
	for _, sigma := range []float64{0.5, 2, 25} {
		k := gaussianKernel(sigma)
		var sum float64
		for _, w := range k {
			sum += w
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("sigma %v: kernel sums to %v", sigma, sum)
		}
		if want := 2*int(4*sigma+0.5) + 1; len(k) != want {
			t.Errorf("sigma %v: kernel length %d, want %d", sigma, len(k), want)
		}
	}
}

func TestGaussianBlurPreservesConstant(t *testing.T) {
	n := 8
	src := make([]float64, n*n)
	for i := range src {
		src[i] = 0.7
	}
	// A kernel wider than the grid still reflects back onto valid samples.
	out := GaussianBlur(src, n, 5)
	for i, v := range out {
		if math.Abs(v-0.7) > 1e-9 {
			t.Fatalf("out[%d] = %v, want 0.7", i, v)
		}
	}
}

func TestGaussianBlurSmooths(t *testing.T) {
	n := 9
	src := make([]float64, n*n)
	src[4*n+4] = 1
	out := GaussianBlur(src, n, 1)

	centre := out[4*n+4]
	if centre >= 1 || centre <= 0 {
		t.Errorf("centre = %v, want in (0, 1)", centre)
	}
	if out[4*n+5] >= centre || out[4*n+5] <= 0 {
		t.Errorf("neighbour %v should be positive and below centre %v", out[4*n+5], centre)
	}
	if math.Abs(out[4*n+3]-out[4*n+5]) > 1e-12 || math.Abs(out[3*n+4]-out[5*n+4]) > 1e-12 {
		t.Error("blur of a centred impulse should be symmetric")
	}
}

func TestGaussianBlurZeroSigmaCopies(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	out := GaussianBlur(src, 2, 0)
	out[0] = 99
	if src[0] != 1 {
		t.Error("zero sigma blur must not alias src")
	}
}

func TestGenerateClusterFieldRange(t *testing.T) {
	n := 32
	f := GenerateClusterField(NewRNG(3), n, smallFieldParams())

	if len(f.Values) != n*n {
		t.Fatalf("len = %d, want %d", len(f.Values), n*n)
	}
	if k := len(f.Clusters); k < 3 || k > 5 {
		t.Errorf("cluster count %d outside [3, 5]", k)
	}
	peak := 0.0
	for i, v := range f.Values {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("value[%d] = %v outside [0, 1]", i, v)
		}
		peak = math.Max(peak, v)
	}
	if math.Abs(peak-1) > 1e-12 {
		t.Errorf("peak = %v, want 1", peak)
	}
	for _, c := range f.Clusters {
		if c.Amplitude < 0.5 || c.Amplitude >= 1.0 {
			t.Errorf("amplitude %v outside [0.5, 1)", c.Amplitude)
		}
		if c.SigmaX < 3 || c.SigmaX >= 8 || c.SigmaY < 3 || c.SigmaY >= 8 {
			t.Errorf("sigmas (%v, %v) outside [3, 8)", c.SigmaX, c.SigmaY)
		}
	}
}

func TestGenerateClusterFieldDeterministic(t *testing.T) {
	a := GenerateClusterField(NewRNG(11), 24, smallFieldParams())
	b := GenerateClusterField(NewRNG(11), 24, smallFieldParams())
	c := GenerateClusterField(NewRNG(12), 24, smallFieldParams())

	same := true
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("same seed differs at %d", i)
		}
		if a.Values[i] != c.Values[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical fields")
	}
}

func TestNormalizeZeroField(t *testing.T) {
	v := make([]float64, 16)
	Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Fatalf("v[%d] = %v, want 0", i, x)
		}
	}
	Normalize(nil)
}

func TestNormalizeScales(t *testing.T) {
	v := []float64{0, 2, 4}
	Normalize(v)
	want := []float64{0, 0.5, 1}
	for i := range v {
		if math.Abs(v[i]-want[i]) > 1e-12 {
			t.Errorf("v[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestPlaceTreesDensity(t *testing.T) {
	n := 64
	field := GenerateClusterField(NewRNG(5), n, smallFieldParams()).Values

	tests := []struct {
		density float64
		tol     float64
	}{
		{0, 0},
		{0.25, 0.01},
		{0.6, 0.01},
		{1, 0},
	}
	for _, tt := range tests {
		g := NewGrid(n)
		PlaceTrees(NewRNG(9), g, field, tt.density, 0.1)
		frac := float64(g.Count().Tree) / float64(n*n)
		if math.Abs(frac-tt.density) > tt.tol {
			t.Errorf("density %v: tree fraction %v", tt.density, frac)
		}
	}
}

func TestFloodWater(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Tree, Empty},
		{Tree, Tree},
	})
	FloodWater(g, []float64{1.4, 1.5, 0.9, 1.45}, 1.45)
	want := []Cell{Tree, Water, Tree, Water}
	for i, c := range g.Cells() {
		if c != want[i] {
			t.Errorf("cell %d = %v, want %v", i, c, want[i])
		}
	}
}

func TestHumidityFromField(t *testing.T) {
	h := HumidityFromField([]float64{0, 0.25, 1})
	want := []float64{0.5, 0.75, 1.5}
	for i := range h {
		if math.Abs(h[i]-want[i]) > 1e-12 {
			t.Errorf("h[%d] = %v, want %v", i, h[i], want[i])
		}
	}
}
