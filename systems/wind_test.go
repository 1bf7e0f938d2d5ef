package systems

import (
	"errors"
	"math"
	"testing"
)

func TestVec2Rotate(t *testing.T) {
	tests := []struct {
		name string
		in   Vec2
		rad  float64
		want Vec2
	}{
		{"quarter turn", Vec2{X: 1}, math.Pi / 2, Vec2{Y: 1}},
		{"half turn", Vec2{X: 1}, math.Pi, Vec2{X: -1}},
		{"negative quarter", Vec2{X: 1}, -math.Pi / 2, Vec2{Y: -1}},
		{"zero", Vec2{X: 0.6, Y: 0.8}, 0, Vec2{X: 0.6, Y: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Rotate(tt.rad)
			if math.Abs(got.X-tt.want.X) > 1e-12 || math.Abs(got.Y-tt.want.Y) > 1e-12 {
				t.Errorf("Rotate(%v) = %v, want %v", tt.rad, got, tt.want)
			}
		})
	}
}

func TestNewWindStateNormalises(t *testing.T) {
	w, err := NewWindState(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	d := w.Dir()
	if math.Abs(d.X-0.6) > 1e-12 || math.Abs(d.Y-0.8) > 1e-12 {
		t.Errorf("dir = %v, want (0.6, 0.8)", d)
	}
}

func TestNewWindStateRejectsZero(t *testing.T) {
	if _, err := NewWindState(0, 0); !errors.Is(err, ErrZeroWind) {
		t.Errorf("err = %v, want ErrZeroWind", err)
	}
}

func TestNewWindStateRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
	}{
		{"inf x", math.Inf(1), 0},
		{"neg inf y", 1, math.Inf(-1)},
		{"nan x", math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWindState(tt.x, tt.y); !errors.Is(err, ErrNonFiniteWind) {
				t.Errorf("err = %v, want ErrNonFiniteWind", err)
			}
		})
	}
}

func TestWindStaysUnitLength(t *testing.T) {
	w, _ := NewWindState(1, 0)
	rng := NewRNG(1)
	for i := 0; i < 100000; i++ {
		w.Drift(rng, math.Pi/3)
	}
	if l := w.Dir().Len(); math.Abs(l-1) > 1e-9 {
		t.Errorf("|wind| = %v after many rotations", l)
	}
}

func TestWindDriftBounded(t *testing.T) {
	w, _ := NewWindState(1, 0)
	rng := NewRNG(2)
	maxRad := 5 * math.Pi / 180
	for i := 0; i < 1000; i++ {
		before := w.Dir()
		w.Drift(rng, maxRad)
		after := w.Dir()
		turned := math.Acos(math.Max(-1, math.Min(1, before.Dot(after))))
		if turned > maxRad+1e-9 {
			t.Fatalf("step %d turned %v rad, max %v", i, turned, maxRad)
		}
	}
}

func TestWindDriftZeroChange(t *testing.T) {
	w, _ := NewWindState(0, 1)
	rng := NewRNG(3)
	for i := 0; i < 10; i++ {
		w.Drift(rng, 0)
	}
	if d := w.Dir(); d != (Vec2{X: 0, Y: 1}) {
		t.Errorf("dir = %v, want unchanged", d)
	}
}
