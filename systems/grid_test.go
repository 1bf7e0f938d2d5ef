package systems

import (
	"encoding/json"
	"math"
	"testing"
)

func TestGridIndexing(t *testing.T) {
	g := NewGrid(4)
	g.Set(1, 2, Tree)
	if g.Index(1, 2) != 6 {
		t.Errorf("Index(1,2) = %d, want 6", g.Index(1, 2))
	}
	if g.Cells()[6] != Tree || g.At(1, 2) != Tree {
		t.Error("Set did not write row-major slot")
	}
	if g.InBounds(-1, 0) || g.InBounds(0, 4) || !g.InBounds(3, 3) {
		t.Error("InBounds wrong at edges")
	}
}

func TestGridCloneIsIndependent(t *testing.T) {
	g := NewGrid(3)
	c := g.Clone()
	c.Set(0, 0, Burning)
	if g.At(0, 0) != Empty {
		t.Error("Clone shares storage")
	}
	rows := g.Rows()
	rows[1][1] = Ash
	if g.At(1, 1) != Empty {
		t.Error("Rows shares storage")
	}
}

func TestGridCountPartitions(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Empty, Tree, Burning},
		{Lightning, Ash, Water},
		{Tree, Tree, Empty},
	})
	cc := g.Count()
	if cc.Total() != 9 {
		t.Errorf("total = %d, want 9", cc.Total())
	}
	want := map[Cell]int{Empty: 2, Tree: 3, Burning: 1, Lightning: 1, Ash: 1, Water: 1}
	for c, n := range want {
		if cc.Of(c) != n {
			t.Errorf("count(%v) = %d, want %d", c, cc.Of(c), n)
		}
	}
}

func TestFindNeighborScanOrder(t *testing.T) {
	g := GridFromRows([][]Cell{
		{Empty, Empty, Burning, Empty, Empty},
		{Empty, Empty, Empty, Empty, Empty},
		{Burning, Empty, Tree, Empty, Empty},
		{Empty, Empty, Empty, Empty, Empty},
		{Empty, Empty, Empty, Empty, Burning},
	})

	tests := []struct {
		name       string
		radius     int
		wantOK     bool
		dRow, dCol int
	}{
		{"radius 1 sees nothing", 1, false, 0, 0},
		{"radius 2 hits top row first", 2, true, -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			di, dj, ok := g.FindNeighbor(2, 2, tt.radius, Burning)
			if ok != tt.wantOK || di != tt.dRow || dj != tt.dCol {
				t.Errorf("got (%d, %d, %v), want (%d, %d, %v)", di, dj, ok, tt.dRow, tt.dCol, tt.wantOK)
			}
		})
	}
}

func TestFindNeighborSkipsSelfAndEdges(t *testing.T) {
	g := NewGrid(2)
	g.Set(0, 0, Tree)
	if _, _, ok := g.FindNeighbor(0, 0, 3, Tree); ok {
		t.Error("cell must not find itself")
	}
	g.Set(1, 1, Tree)
	di, dj, ok := g.FindNeighbor(0, 0, 3, Tree)
	if !ok || di != 1 || dj != 1 {
		t.Errorf("got (%d, %d, %v), want (1, 1, true)", di, dj, ok)
	}
}

func TestCellText(t *testing.T) {
	for c := Empty; c < numCells; c++ {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", c, err)
		}
		var back Cell
		if err := back.UnmarshalText(text); err != nil || back != c {
			t.Errorf("round trip %v -> %q -> %v (%v)", c, text, back, err)
		}
	}

	if Cell(42).Valid() {
		t.Error("Cell(42) should be invalid")
	}
	if _, err := Cell(42).MarshalText(); err == nil {
		t.Error("expected error marshaling invalid cell")
	}
	var c Cell
	if err := c.UnmarshalText([]byte("smoke")); err == nil {
		t.Error("expected error for unknown name")
	}

	data, err := json.Marshal(map[string]Cell{"a": Burning})
	if err != nil || string(data) != `{"a":"burning"}` {
		t.Errorf("json = %s (%v)", data, err)
	}
}

func TestRNGIntRangeInclusive(t *testing.T) {
	rng := NewRNG(4)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := rng.IntRange(15, 20)
		if v < 15 || v > 20 {
			t.Fatalf("IntRange out of bounds: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 6 {
		t.Errorf("saw %d distinct values, want 6", len(seen))
	}
	if rng.IntRange(3, 3) != 3 {
		t.Error("degenerate range should return lo")
	}
}

func TestRNGDeterministic(t *testing.T) {
	a, b := NewRNG(99), NewRNG(99)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed diverged")
		}
		if a.Normal(0, 1) != b.Normal(0, 1) {
			t.Fatal("same seed diverged on normal draws")
		}
	}
}

func TestRNGNormalMoments(t *testing.T) {
	rng := NewRNG(5)
	const n = 20000
	var sum, sq float64
	for i := 0; i < n; i++ {
		v := rng.Normal(2, 0.5)
		sum += v
		sq += v * v
	}
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)
	if math.Abs(mean-2) > 0.02 || math.Abs(std-0.5) > 0.02 {
		t.Errorf("mean %v std %v, want 2 and 0.5", mean, std)
	}
	if rng.Normal(1, 0) != 1 {
		t.Error("zero std should return the mean")
	}
}
