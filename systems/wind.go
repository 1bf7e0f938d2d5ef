package systems

import (
	"errors"
	"math"
)

// Vec2 is a 2D vector in grid axes: X along rows, Y along columns.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Len returns the Euclidean length.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dot returns the dot product.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Rotate turns v counter-clockwise by rad radians.
func (v Vec2) Rotate(rad float64) Vec2 {
	s, c := math.Sincos(rad)
	return Vec2{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vec2) Unit() Vec2 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// ErrZeroWind is returned for a wind heading with no direction.
var ErrZeroWind = errors.New("wind vector has zero length")

// ErrNonFiniteWind is returned for a wind heading with NaN or infinite parts.
var ErrNonFiniteWind = errors.New("wind vector is not finite")

// WindState is the prevailing wind heading, kept at unit length.
type WindState struct {
	dir Vec2
}

// NewWindState normalises the initial heading.
func NewWindState(x, y float64) (*WindState, error) {
	v := Vec2{X: x, Y: y}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return nil, ErrNonFiniteWind
	}
	if v.Len() == 0 {
		return nil, ErrZeroWind
	}
	return &WindState{dir: v.Unit()}, nil
}

// Dir returns the current unit heading.
func (w *WindState) Dir() Vec2 { return w.dir }

// Rotate turns the heading counter-clockwise by rad and renormalises.
func (w *WindState) Rotate(rad float64) {
	w.dir = w.dir.Rotate(rad).Unit()
}

// Drift applies one random-walk step of at most maxRad in either direction.
func (w *WindState) Drift(rng *RNG, maxRad float64) {
	w.Rotate((2*rng.Float64() - 1) * maxRad)
}
