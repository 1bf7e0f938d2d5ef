package systems

import (
	"math"
	"testing"
)

// uniformInput wraps g with humidity 1 everywhere and every noise draw set to u.
func uniformInput(g *Grid, wind Vec2, u float64) *StepInput {
	n := len(g.Cells())
	hum := make([]float64, n)
	for i := range hum {
		hum[i] = 1
	}
	noise := make([]float64, DrawsPerCell*n)
	for i := range noise {
		noise[i] = u
	}
	return &StepInput{Grid: g, Humidity: hum, Wind: wind, Noise: noise}
}

func step(p RuleParams, in *StepInput) *StepOutput {
	out := &StepOutput{Grid: NewGrid(in.Grid.N)}
	if p.Coupled() {
		out.HumidityDelta = make([]float64, len(in.Grid.Cells()))
	}
	p.Apply(in, out, 0, in.Grid.N)
	return out
}

func TestNextStateUnconditional(t *testing.T) {
	tests := []struct {
		name string
		from Cell
		want Cell
	}{
		{"lightning ignites", Lightning, Burning},
		{"burning leaves ash", Burning, Ash},
		{"ash clears", Ash, Empty},
		{"lone empty stays", Empty, Empty},
		{"lone tree stays", Tree, Tree},
		{"water stays", Water, Water},
	}

	p := RuleParams{GrowthProb: 1, SpreadProb: 1, Radius: 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrid(1)
			g.Set(0, 0, tt.from)
			in := uniformInput(g, Vec2{X: 1}, 0.5)
			if got := p.NextState(in, 0, 0); got != tt.want {
				t.Errorf("%v -> %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestLightningPreemptsEveryState(t *testing.T) {
	p := RuleParams{LightningProb: 0.5, Radius: 1}
	for _, from := range []Cell{Empty, Tree, Burning, Lightning, Ash} {
		g := NewGrid(1)
		g.Set(0, 0, from)
		in := uniformInput(g, Vec2{X: 1}, 0.1)
		if got := p.NextState(in, 0, 0); got != Lightning {
			t.Errorf("%v with strike -> %v, want lightning", from, got)
		}
	}
}

func TestWaterIgnoresLightning(t *testing.T) {
	p := RuleParams{LightningProb: 1, Radius: 1}
	g := NewGrid(1)
	g.Set(0, 0, Water)
	in := uniformInput(g, Vec2{X: 1}, 0)
	if got := p.NextState(in, 0, 0); got != Water {
		t.Errorf("water -> %v", got)
	}
}

func TestEmptyRegrowsNextToTree(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Empty, Empty, Empty},
		{Empty, Empty, Empty},
		{Empty, Empty, Tree},
	})
	p := RuleParams{GrowthProb: 0.6, Radius: 1}
	out := step(p, uniformInput(g, Vec2{X: 1}, 0.5))

	if got := out.Grid.At(1, 1); got != Tree {
		t.Errorf("(1,1) next to tree -> %v, want tree", got)
	}
	if got := out.Grid.At(0, 0); got != Empty {
		t.Errorf("(0,0) out of radius -> %v, want empty", got)
	}

	// Radius 2 reaches the far corner.
	p.Radius = 2
	out = step(p, uniformInput(g, Vec2{X: 1}, 0.5))
	if got := out.Grid.At(0, 0); got != Tree {
		t.Errorf("(0,0) with radius 2 -> %v, want tree", got)
	}

	// Draw above growth_prob never regrows.
	out = step(p, uniformInput(g, Vec2{X: 1}, 0.7))
	if got := out.Grid.At(1, 1); got != Empty {
		t.Errorf("(1,1) with high draw -> %v, want empty", got)
	}
}

func TestSpreadFollowsWindAngle(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Tree, Tree, Tree},
		{Tree, Burning, Tree},
		{Tree, Tree, Tree},
	})
	// Wind points toward row -1. For (0,1) the fire sits at offset (+1, 0),
	// opposite the wind, so θ/π = 1. For (2,1) the offset is (-1, 0), θ = 0.
	p := RuleParams{SpreadProb: 1, Radius: 1}
	out := step(p, uniformInput(g, Vec2{X: -1}, 0.5))

	if got := out.Grid.At(0, 1); got != Burning {
		t.Errorf("(0,1) -> %v, want burning", got)
	}
	if got := out.Grid.At(2, 1); got != Tree {
		t.Errorf("(2,1) aligned with wind -> %v, want tree", got)
	}
	if got := out.Grid.At(1, 1); got != Ash {
		t.Errorf("centre -> %v, want ash", got)
	}
	// (1,0): offset (0,+1), perpendicular, θ/π = 0.5, draw 0.5 is not < 0.5.
	if got := out.Grid.At(1, 0); got != Tree {
		t.Errorf("(1,0) perpendicular -> %v, want tree", got)
	}
}

func TestSpreadScalesWithHumidity(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Tree, Burning},
		{Empty, Empty},
	})
	p := RuleParams{SpreadProb: 1, Radius: 1}
	in := uniformInput(g, Vec2{X: 0, Y: -1}, 0.5)

	// Offset (0,+1) against wind (0,-1): θ/π = 1, threshold = humidity.
	in.Humidity[0] = 0.6
	if got := p.NextState(in, 0, 0); got != Burning {
		t.Errorf("humidity 0.6 -> %v, want burning", got)
	}
	in.Humidity[0] = 0.4
	if got := p.NextState(in, 0, 0); got != Tree {
		t.Errorf("humidity 0.4 -> %v, want tree", got)
	}
}

func TestSpreadUsesFirstFireInScanOrder(t *testing.T) {
	// Both (0,0) and (2,2) burn around centre (1,1); the scan hits (0,0)
	// first, offset (-1,-1). Wind along (-1,-1) makes θ = 0 so no spread,
	// even though the other fire would give θ = π.
	g := GridFromRows([][]Cell{
		{Burning, Empty, Empty},
		{Empty, Tree, Empty},
		{Empty, Empty, Burning},
	})
	p := RuleParams{SpreadProb: 1, Radius: 1}
	in := uniformInput(g, Vec2{X: -1, Y: -1}.Unit(), 0.01)
	if got := p.NextState(in, 1, 1); got != Tree {
		t.Errorf("centre -> %v, want tree", got)
	}
}

func TestSpreadAngle(t *testing.T) {
	tests := []struct {
		name       string
		dRow, dCol int
		wind       Vec2
		want       float64
	}{
		{"aligned", 1, 0, Vec2{X: 1}, 0},
		{"opposite", 1, 0, Vec2{X: -1}, math.Pi},
		{"perpendicular", 0, 1, Vec2{X: 1}, math.Pi / 2},
		{"diagonal", 1, 1, Vec2{X: 1}, math.Pi / 4},
		{"far offset", 0, 3, Vec2{Y: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SpreadAngle(tt.dRow, tt.dCol, tt.wind)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SpreadAngle(%d, %d, %v) = %v, want %v", tt.dRow, tt.dCol, tt.wind, got, tt.want)
			}
		})
	}
}

func TestHumidityDelta(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Burning, Tree, Empty, Empty},
		{Empty, Empty, Empty, Empty},
		{Empty, Empty, Empty, Water},
		{Empty, Empty, Empty, Empty},
	})
	p := RuleParams{Radius: 1, HumidityChange: 0.01, HumidityChangeFire: 0.1}
	out := step(p, uniformInput(g, Vec2{X: 1}, 0.99))

	tests := []struct {
		row, col int
		want     float64
	}{
		{0, 0, 0.01},  // burning becomes ash, no other fire nearby
		{0, 1, -0.1},  // next to fire
		{1, 1, -0.1},  // diagonal to fire
		{0, 2, 0.01},  // out of radius
		{2, 3, 0},     // water
		{3, 3, 0.01},  // far corner
	}
	for _, tt := range tests {
		got := out.HumidityDelta[g.Index(tt.row, tt.col)]
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("delta(%d,%d) = %v, want %v", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestApplyHumidityClamps(t *testing.T) {
	h := []float64{0.55, 1.45, 1.0}
	ApplyHumidity(h, []float64{-0.1, 0.1, 0.2}, HumidityMin, HumidityMax)
	want := []float64{0.5, 1.5, 1.2}
	for i := range h {
		if math.Abs(h[i]-want[i]) > 1e-12 {
			t.Errorf("h[%d] = %v, want %v", i, h[i], want[i])
		}
	}
}

func TestApplyRowRangesCompose(t *testing.T) {
	rng := NewRNG(7)
	g := NewGrid(12)
	for i := range g.Cells() {
		g.Cells()[i] = Cell(rng.IntRange(0, int(Water)))
	}
	p := RuleParams{LightningProb: 0.05, GrowthProb: 0.3, SpreadProb: 0.8, Radius: 2, HumidityChange: 0.01, HumidityChangeFire: 0.05}
	in := uniformInput(g, Vec2{X: 0.6, Y: 0.8}, 0)
	rng.Fill(in.Noise)

	whole := step(p, in)

	split := &StepOutput{Grid: NewGrid(12), HumidityDelta: make([]float64, 144)}
	p.Apply(in, split, 0, 5)
	p.Apply(in, split, 5, 12)

	for i := range whole.Grid.Cells() {
		if whole.Grid.Cells()[i] != split.Grid.Cells()[i] {
			t.Fatalf("cell %d differs: %v vs %v", i, whole.Grid.Cells()[i], split.Grid.Cells()[i])
		}
		if whole.HumidityDelta[i] != split.HumidityDelta[i] {
			t.Fatalf("delta %d differs", i)
		}
	}
}
