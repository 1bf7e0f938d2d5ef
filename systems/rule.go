package systems

import "math"

// DrawsPerCell is the number of uniform values the rule consumes per cell.
const DrawsPerCell = 2

// RuleParams holds the per-cell transition parameters.
type RuleParams struct {
	LightningProb float64
	GrowthProb    float64
	SpreadProb    float64
	Radius        int

	// Humidity coupling; both zero disables delta output.
	HumidityChange     float64
	HumidityChangeFire float64
}

// Coupled reports whether the rule produces humidity deltas.
func (p RuleParams) Coupled() bool {
	return p.HumidityChange != 0 || p.HumidityChangeFire != 0
}

// StepInput is the frozen previous generation a step reads from.
type StepInput struct {
	Grid     *Grid
	Humidity []float64
	Wind     Vec2
	// Noise holds DrawsPerCell uniforms per cell: [2k] decides lightning,
	// [2k+1] decides growth or spread.
	Noise []float64
}

// StepOutput receives the next generation.
type StepOutput struct {
	Grid          *Grid
	HumidityDelta []float64 // nil when the rule is not coupled
}

// SpreadAngle returns the angle in [0, π] between the offset to a burning
// neighbour and the wind heading.
func SpreadAngle(dRow, dCol int, wind Vec2) float64 {
	d := Vec2{X: float64(dRow), Y: float64(dCol)}
	cos := d.Dot(wind) / (d.Len() * wind.Len())
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// NextState evaluates the transition rule for one cell. Rules are tried in
// order and the first match wins; lightning pre-empts every non-Water state.
func (p RuleParams) NextState(in *StepInput, row, col int) Cell {
	g := in.Grid
	i := g.Index(row, col)
	cur := g.cells[i]

	if cur == Water {
		return Water
	}

	if in.Noise[DrawsPerCell*i] < p.LightningProb {
		return Lightning
	}

	switch cur {
	case Lightning:
		return Burning
	case Burning:
		return Ash
	case Ash:
		return Empty
	case Empty:
		if _, _, ok := g.FindNeighbor(row, col, p.Radius, Tree); ok && in.Noise[DrawsPerCell*i+1] < p.GrowthProb {
			return Tree
		}
	case Tree:
		if di, dj, ok := g.FindNeighbor(row, col, p.Radius, Burning); ok {
			theta := SpreadAngle(di, dj, in.Wind)
			if in.Noise[DrawsPerCell*i+1] < p.SpreadProb*in.Humidity[i]*(theta/math.Pi) {
				return Burning
			}
		}
	}

	return cur
}

// humidityDelta is the moisture change of a non-Water cell.
func (p RuleParams) humidityDelta(in *StepInput, row, col int, next Cell) float64 {
	if next == Burning {
		return -p.HumidityChangeFire
	}
	if _, _, ok := in.Grid.FindNeighbor(row, col, p.Radius, Burning); ok {
		return -p.HumidityChangeFire
	}
	return p.HumidityChange
}

// Apply evaluates rows [rowStart, rowEnd) into out. Only those rows of out
// are written, so disjoint row ranges may run concurrently.
func (p RuleParams) Apply(in *StepInput, out *StepOutput, rowStart, rowEnd int) {
	n := in.Grid.N
	coupled := out.HumidityDelta != nil
	for row := rowStart; row < rowEnd; row++ {
		for col := 0; col < n; col++ {
			next := p.NextState(in, row, col)
			i := row*n + col
			out.Grid.cells[i] = next
			if !coupled {
				continue
			}
			if next == Water {
				out.HumidityDelta[i] = 0
				continue
			}
			out.HumidityDelta[i] = p.humidityDelta(in, row, col, next)
		}
	}
}

// ApplyHumidity adds delta to humidity and clamps to [lo, hi].
func ApplyHumidity(humidity, delta []float64, lo, hi float64) {
	for i, d := range delta {
		humidity[i] = math.Max(lo, math.Min(hi, humidity[i]+d))
	}
}
