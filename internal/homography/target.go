package homography

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
)

// SizeConfig controls DocumentSize.
type SizeConfig struct {
	AspectRatio     float64 // expected long/short side ratio, √2 for ISO paper
	AspectTolerance float64 // allowed deviation from AspectRatio; <= 0 disables the check
}

// DefaultSizeConfig expects ISO 216 paper within ±0.4.
func DefaultSizeConfig() SizeConfig {
	return SizeConfig{AspectRatio: math.Sqrt2, AspectTolerance: 0.4}
}

// Size is the corrected document size in pixels.
type Size struct {
	Width  int
	Height int
}

// DocumentSize derives the upright document size from corners [TL, TR, BR, BL].
// Width is the mean of the top and bottom sides plus 4, rounded up to a
// multiple of 10; height is the mean of the left and right sides plus 4.
func DocumentSize(corners [4]geometry.Point, cfg SizeConfig) (Size, error) {
	top := corners[0].Dist(corners[1])
	right := corners[1].Dist(corners[2])
	bottom := corners[2].Dist(corners[3])
	left := corners[3].Dist(corners[0])

	w := int((top+bottom)/2) + 4
	w = (w + 9) / 10 * 10
	h := int((right+left)/2) + 4
	size := Size{Width: w, Height: h}

	if cfg.AspectTolerance > 0 {
		long, short := float64(max(w, h)), float64(min(w, h))
		ratio := long / short
		if math.Abs(ratio-cfg.AspectRatio) > cfg.AspectTolerance {
			return size, fmt.Errorf("%w: %dx%d (ratio %.3f, want %.3f±%.2f)",
				ErrAspectRatio, w, h, ratio, cfg.AspectRatio, cfg.AspectTolerance)
		}
	}
	return size, nil
}

// TargetCorners places a size-d rectangle whose bottom-right corner sits at
// the mean x of the right side (TR, BR) and the mean y of the bottom side
// (BR, BL) of corners, not at the bottom edge's midpoint or at BL.Y. The
// rectangle is shifted to stay inside a width x height
// image where it fits.
func TargetCorners(corners [4]geometry.Point, size Size, width, height int) [4]geometry.Point {
	x1 := (corners[1].X + corners[2].X) / 2
	y1 := (corners[2].Y + corners[3].Y) / 2
	x0, y0 := x1-size.Width, y1-size.Height

	dx := shift(x0, x1, width)
	dy := shift(y0, y1, height)
	x0, x1 = x0+dx, x1+dx
	y0, y1 = y0+dy, y1+dy

	return [4]geometry.Point{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}
}

// shift returns the offset that moves [lo, hi] inside [0, limit-1], favouring
// the low edge when the span is wider than the image.
func shift(lo, hi, limit int) int {
	if hi > limit-1 {
		d := limit - 1 - hi
		if lo+d >= 0 {
			return d
		}
		return -lo
	}
	if lo < 0 {
		return -lo
	}
	return 0
}
