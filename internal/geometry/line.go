// Package geometry implements the implicit line algebra used to turn Hough
// parameters into document corners.
package geometry

import (
	"fmt"
	"math"
)

// Point is an integer pixel coordinate; Y grows downward.
type Point struct {
	X int
	Y int
}

// Norm returns the Euclidean distance of p from the origin.
func (p Point) Norm() float64 {
	return math.Hypot(float64(p.X), float64(p.Y))
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// EquationLine is the implicit line A*x + B*y + C = 0 with (A, B) != (0, 0).
type EquationLine struct {
	A float64
	B float64
	C float64
}

// NewLineThroughPoints returns the line passing through p1 and p2.
// p1 and p2 must differ.
func NewLineThroughPoints(p1, p2 Point) EquationLine {
	dx := float64(p2.X - p1.X)
	dy := float64(p2.Y - p1.Y)
	a, b := dy, -dx
	return EquationLine{A: a, B: b, C: -(a*float64(p1.X) + b*float64(p1.Y))}
}

// NewLineFromNormal returns the line whose normal vector is n and which
// passes through p. This is how a Hough (distance, angle) pair becomes an
// equation: n is the foot of the perpendicular from the origin and p is a
// second point offset along the line.
func NewLineFromNormal(n, p Point) EquationLine {
	a, b := float64(n.X), float64(n.Y)
	return EquationLine{A: a, B: b, C: -(float64(p.X)*a + float64(p.Y)*b)}
}

// Valid reports whether the normal vector is non-zero.
func (l EquationLine) Valid() bool {
	return l.A != 0 || l.B != 0
}

// DeterminePosition evaluates A*x + B*y + C. Its sign tells which side of the
// line the pixel is on.
func (l EquationLine) DeterminePosition(x, y int) float64 {
	return l.A*float64(x) + l.B*float64(y) + l.C
}

// AngleDeviationOX returns arccos(B/|(A,B)|) in [0, π]. It is only a sort key
// separating near-horizontal lines (small values) from near-vertical ones.
func (l EquationLine) AngleDeviationOX() float64 {
	n := math.Hypot(l.A, l.B)
	if n == 0 {
		return 0
	}
	return math.Acos(clamp(l.B/n, -1, 1))
}

// Inclination returns the signed angle between the line direction and the
// x axis in image coordinates, folded into (-π/2, π/2].
func (l EquationLine) Inclination() float64 {
	a := math.Atan2(-l.A, l.B)
	if a > math.Pi/2 {
		a -= math.Pi
	} else if a <= -math.Pi/2 {
		a += math.Pi
	}
	return a
}

// Intersect solves the 2x2 system formed by l and m. ok is false when the
// lines are parallel within tolerance, i.e. |A1*B2 - B1*A2| < tol.
// Coordinates are truncated toward zero.
func Intersect(l, m EquationLine, tol float64) (Point, bool) {
	det := l.A*m.B - l.B*m.A
	if math.Abs(det) < tol || det == 0 {
		return Point{}, false
	}
	c1, c2 := -l.C, -m.C
	x := (c1*m.B - l.B*c2) / det
	y := (l.A*c2 - c1*m.A) / det
	return Point{X: int(x), Y: int(y)}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
