// Package corners turns the four Hough boundary lines into document corners
// and puts corners and lines into a canonical order.
package corners

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
)

// ErrCornerCount is returned when the boundary lines do not intersect in
// exactly four acceptable points.
var ErrCornerCount = errors.New("corners: expected exactly 4 document corners")

// ParallelTolerance is the determinant magnitude below which two lines are
// treated as parallel.
const ParallelTolerance = 10

// guideLength is the offset along the line used to build its second point.
const guideLength = 20

// Result holds the corners [TL, TR, BR, BL] and the boundary equations
// [top, bottom, left, right].
type Result struct {
	Corners [4]geometry.Point
	Lines   [4]geometry.EquationLine
}

// ToEquationLine converts a Hough line into implicit form. The foot of the
// perpendicular from the origin is the normal vector; a second point is
// taken guideLength pixels along the line direction.
func ToEquationLine(line hough.StraightLine) geometry.EquationLine {
	d := float64(line.Distance)
	cos, sin := math.Cos(line.Angle), math.Sin(line.Angle)
	n := geometry.Point{X: int(d * cos), Y: int(d * sin)}
	along := line.Angle + math.Pi/2
	p := geometry.Point{
		X: int(float64(n.X) + guideLength*math.Cos(along)),
		Y: int(float64(n.Y) + guideLength*math.Sin(along)),
	}
	return geometry.NewLineFromNormal(n, p)
}

// Find intersects every pair of lines and keeps intersections that fall
// inside the image extended by a seventh of its width and a ninth of its
// height. Exactly four must remain.
func Find(lines [hough.LineCount]hough.StraightLine, width, height int) (Result, error) {
	var res Result
	var eqs [4]geometry.EquationLine
	for i, l := range lines {
		eqs[i] = ToEquationLine(l)
	}

	padX, padY := width/7, height/9
	found := make([]geometry.Point, 0, 6)
	for i := range eqs {
		for j := i + 1; j < len(eqs); j++ {
			p, ok := geometry.Intersect(eqs[i], eqs[j], ParallelTolerance)
			if !ok {
				continue
			}
			if p.X > -padX && p.X < width+padX && p.Y > -padY && p.Y < height+padY {
				found = append(found, p)
			}
		}
	}
	if len(found) != 4 {
		return res, fmt.Errorf("%w: found %d %v", ErrCornerCount, len(found), found)
	}

	res.Corners = SortPoints([4]geometry.Point(found))
	res.Lines = SortEquations(eqs)
	slog.Debug("document corners", "tl", res.Corners[0], "tr", res.Corners[1], "br", res.Corners[2], "bl", res.Corners[3])
	return res, nil
}

// SortPoints orders four corners as [TL, TR, BR, BL]. The corner nearest the
// origin is top-left and the farthest is bottom-right; of the remaining two,
// the one to the right and above is top-right.
func SortPoints(pts [4]geometry.Point) [4]geometry.Point {
	s := pts
	slices.SortStableFunc(s[:], func(a, b geometry.Point) int {
		return cmp.Compare(a.Norm(), b.Norm())
	})
	if s[1].X < s[2].X || s[1].Y > s[2].Y {
		s[1], s[2] = s[2], s[1]
	}
	return [4]geometry.Point{s[0], s[1], s[3], s[2]}
}

// SortEquations orders the boundary lines as [top, bottom, left, right]:
// near-horizontal lines first, each pair ordered by distance from the origin.
func SortEquations(lines [4]geometry.EquationLine) [4]geometry.EquationLine {
	s := lines
	slices.SortStableFunc(s[:], func(a, b geometry.EquationLine) int {
		return cmp.Compare(a.AngleDeviationOX(), b.AngleDeviationOX())
	})
	byC := func(a, b geometry.EquationLine) int {
		return cmp.Compare(math.Abs(a.C), math.Abs(b.C))
	}
	slices.SortStableFunc(s[:2], byC)
	slices.SortStableFunc(s[2:], byC)
	return s
}
