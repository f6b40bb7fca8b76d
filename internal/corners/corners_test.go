package corners

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permutations[T any](items [4]T) [][4]T {
	var out [][4]T
	var rec func(k int, a [4]T)
	rec = func(k int, a [4]T) {
		if k == len(a) {
			out = append(out, a)
			return
		}
		for i := k; i < len(a); i++ {
			a[k], a[i] = a[i], a[k]
			rec(k+1, a)
			a[k], a[i] = a[i], a[k]
		}
	}
	rec(0, items)
	return out
}

func TestToEquationLine(t *testing.T) {
	vertical := ToEquationLine(hough.StraightLine{Distance: 50, Angle: 0})
	assert.InDelta(t, 0, vertical.DeterminePosition(50, 0), 1e-9)
	assert.InDelta(t, 0, vertical.DeterminePosition(50, 300), 1e-9)
	assert.Less(t, vertical.DeterminePosition(10, 10), 0.0)

	horizontal := ToEquationLine(hough.StraightLine{Distance: 100, Angle: math.Pi / 2})
	assert.InDelta(t, 0, horizontal.DeterminePosition(0, 100), 1e-9)
	assert.InDelta(t, 0, horizontal.DeterminePosition(250, 100), 1e-9)
	assert.Greater(t, horizontal.DeterminePosition(10, 200), 0.0)
}

func TestSortPointsAllPermutations(t *testing.T) {
	want := [4]geometry.Point{{X: 50, Y: 50}, {X: 250, Y: 60}, {X: 240, Y: 350}, {X: 60, Y: 340}}
	perms := permutations(want)
	require.Len(t, perms, 24)
	for _, p := range perms {
		assert.Equal(t, want, SortPoints(p), "input %v", p)
	}
}

func TestSortPointsWideDocument(t *testing.T) {
	// Top-right is nearer the origin than bottom-left here.
	want := [4]geometry.Point{{X: 10, Y: 10}, {X: 200, Y: 20}, {X: 210, Y: 120}, {X: 15, Y: 110}}
	for _, p := range permutations(want) {
		assert.Equal(t, want, SortPoints(p))
	}
}

func TestSortEquationsAllPermutations(t *testing.T) {
	top := ToEquationLine(hough.StraightLine{Distance: 50, Angle: math.Pi / 2})
	bottom := ToEquationLine(hough.StraightLine{Distance: 350, Angle: math.Pi / 2})
	left := ToEquationLine(hough.StraightLine{Distance: 50, Angle: 0})
	right := ToEquationLine(hough.StraightLine{Distance: 250, Angle: 0})
	want := [4]geometry.EquationLine{top, bottom, left, right}

	for _, p := range permutations(want) {
		assert.Equal(t, want, SortEquations(p))
	}
}

func TestFindRectangle(t *testing.T) {
	lines := [4]hough.StraightLine{
		{Distance: 50, Angle: 0},
		{Distance: 250, Angle: 0},
		{Distance: 350, Angle: math.Pi / 2},
		{Distance: 50, Angle: math.Pi / 2},
	}
	res, err := Find(lines, 300, 400)
	require.NoError(t, err)
	assert.Equal(t, [4]geometry.Point{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 250, Y: 350}, {X: 50, Y: 350}}, res.Corners)

	// Mask orientation: outside is <= 0 for top/left and >= 0 for bottom/right.
	assert.Less(t, res.Lines[0].DeterminePosition(150, 10), 0.0)
	assert.Greater(t, res.Lines[1].DeterminePosition(150, 390), 0.0)
	assert.Less(t, res.Lines[2].DeterminePosition(10, 200), 0.0)
	assert.Greater(t, res.Lines[3].DeterminePosition(290, 200), 0.0)
}

func TestFindTiltedQuadrilateral(t *testing.T) {
	tilt := 3 * math.Pi / 180
	lines := [4]hough.StraightLine{
		{Distance: 60, Angle: tilt},
		{Distance: 240, Angle: -tilt},
		{Distance: 70, Angle: math.Pi/2 - tilt},
		{Distance: 330, Angle: math.Pi/2 + tilt},
	}
	res, err := Find(lines, 300, 400)
	require.NoError(t, err)

	// Every corner lies on its two boundary lines within a pixel.
	onLines := [4][2]int{{0, 2}, {0, 3}, {1, 3}, {1, 2}}
	for i, c := range res.Corners {
		for _, li := range onLines[i] {
			l := res.Lines[li]
			dist := math.Abs(l.DeterminePosition(c.X, c.Y)) / math.Hypot(l.A, l.B)
			assert.LessOrEqual(t, dist, 1.5, "corner %d line %d", i, li)
		}
	}
}

func TestFindWrongCornerCount(t *testing.T) {
	lines := [4]hough.StraightLine{
		{Distance: 50, Angle: 0},
		{Distance: 150, Angle: 0},
		{Distance: 250, Angle: 0},
		{Distance: 50, Angle: math.Pi / 2},
	}
	_, err := Find(lines, 300, 400)
	assert.ErrorIs(t, err, ErrCornerCount)
}

func TestFindRejectsFarIntersections(t *testing.T) {
	// The two near-vertical lines converge well below the image.
	lines := [4]hough.StraightLine{
		{Distance: 50, Angle: 0.2},
		{Distance: 250, Angle: -0.2},
		{Distance: 50, Angle: math.Pi / 2},
		{Distance: 350, Angle: math.Pi / 2},
	}
	res, err := Find(lines, 300, 400)
	if err != nil {
		assert.ErrorIs(t, err, ErrCornerCount)
		return
	}
	for _, c := range res.Corners {
		assert.Greater(t, c.Y, -400/9)
		assert.Less(t, c.Y, 400+400/9)
	}
}
