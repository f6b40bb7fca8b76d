// Package homography estimates the projective transform that maps the
// detected document quadrilateral onto an upright rectangle.
package homography

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
)

var (
	// ErrSingular is returned when a matrix cannot be inverted or the DLT
	// system cannot be factorised.
	ErrSingular = errors.New("homography: singular matrix")
	// ErrAspectRatio is returned when the detected quadrilateral is too far
	// from the expected paper proportions.
	ErrAspectRatio = errors.New("homography: document aspect ratio out of range")
)

// Matrix is a 3x3 projective transform, row-major.
type Matrix [3][3]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Dense copies m into a gonum matrix.
func (m Matrix) Dense() *mat.Dense {
	d := mat.NewDense(3, 3, nil)
	for r := range 3 {
		for c := range 3 {
			d.Set(r, c, m[r][c])
		}
	}
	return d
}

func fromDense(d mat.Matrix) Matrix {
	var m Matrix
	for r := range 3 {
		for c := range 3 {
			m[r][c] = d.At(r, c)
		}
	}
	return m
}

// Normalized scales m so that m[2][2] == 1. m is returned unchanged when
// m[2][2] is zero.
func (m Matrix) Normalized() Matrix {
	s := m[2][2]
	if s == 0 {
		return m
	}
	for r := range 3 {
		for c := range 3 {
			m[r][c] /= s
		}
	}
	return m
}

// Apply maps (x, y) through m. Points on the line at infinity map to NaN.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	w := m[2][0]*x + m[2][1]*y + m[2][2]
	if w == 0 {
		return math.NaN(), math.NaN()
	}
	u := (m[0][0]*x + m[0][1]*y + m[0][2]) / w
	v := (m[1][0]*x + m[1][1]*y + m[1][2]) / w
	return u, v
}

// Inverse returns the inverse transform.
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.Dense()); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return fromDense(&inv), nil
}

// TransformPoints maps every point through m, truncating to integer pixels.
func (m Matrix) TransformPoints(pts [4]geometry.Point) [4]geometry.Point {
	var out [4]geometry.Point
	for i, p := range pts {
		u, v := m.Apply(float64(p.X), float64(p.Y))
		out[i] = geometry.Point{X: int(u), Y: int(v)}
	}
	return out
}

// Solve estimates H with H·src[i] ~ dst[i] by the direct linear transform.
// Each correspondence (x, y) -> (u, v) contributes the rows
//
//	[x y 1 0 0 0 -u·x -u·y -u]
//	[0 0 0 x y 1 -v·x -v·y -v]
//
// and h is the right singular vector of the smallest singular value. The
// result is not normalised.
func Solve(src, dst [4]geometry.Point) (Matrix, error) {
	a := mat.NewDense(8, 9, nil)
	for i := range 4 {
		x, y := float64(src[i].X), float64(src[i].Y)
		u, v := float64(dst[i].X), float64(dst[i].Y)
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return Matrix{}, fmt.Errorf("%w: SVD did not converge", ErrSingular)
	}
	var v mat.Dense
	svd.VTo(&v)

	_, cols := v.Dims()
	var h Matrix
	for k := range 9 {
		h[k/3][k%3] = v.At(k, cols-1)
	}
	if h[2][2] == 0 && h[2][0] == 0 && h[2][1] == 0 {
		return Matrix{}, fmt.Errorf("%w: degenerate correspondences", ErrSingular)
	}
	return h, nil
}
