package rectify

import (
	"math"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/homography"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// Warp resamples img through h. Every destination pixel is mapped back
// through the inverse of h and takes the source pixel it lands on (truncated
// coordinates) when 0 <= sx < w-1 and 0 <= sy < h-1; other pixels stay 0.
// The output has the size of img.
func Warp(img *grayscale.Image, h homography.Matrix, workers int) (*grayscale.Image, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	w, ht := img.Width, img.Height
	maxX, maxY := float64(w-1), float64(ht-1)
	out := grayscale.New(w, ht)
	err = parallel.ForRows(ht, workers, func(y int) {
		row := out.Row(y)
		for x := range row {
			// pull the destination pixel back into the photo
			sx, sy := inv.Apply(float64(x), float64(y))
			// the last row and column are never sampled
			if sx >= 0 && sx < maxX && sy >= 0 && sy < maxY {
				row[x] = img.Pix[int(sy)*w+int(sx)]
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rotate turns the content of img by angle radians about (w/2, h/2) in image
// coordinates (positive is clockwise on screen). Nearest-pixel sampling with
// truncated coordinates; samples outside the source stay 0.
func Rotate(img *grayscale.Image, angle float64, workers int) (*grayscale.Image, error) {
	w, h := img.Width, img.Height
	sin, cos := math.Sincos(-angle)
	x0, y0 := float64(w/2), float64(h/2)

	out := grayscale.New(w, h)
	err := parallel.ForRows(h, workers, func(ny int) {
		row := out.Row(ny)
		dy := float64(ny) - y0
		for nx := range row {
			dx := float64(nx) - x0
			// inverse rotation about the centre, truncated to a pixel
			x := int(x0 + dx*cos - dy*sin)
			y := int(y0 + dx*sin + dy*cos)
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			row[nx] = img.Pix[y*w+x]
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BoundaryLines rebuilds the four edges of a quadrilateral [TL, TR, BR, BL]
// as top, right, bottom and left lines through consecutive corners.
func BoundaryLines(c [4]geometry.Point) [4]geometry.EquationLine {
	var lines [4]geometry.EquationLine
	for i := range c {
		lines[i] = geometry.NewLineThroughPoints(c[i], c[(i+1)%4])
	}
	return lines
}

// ResidualTilt returns the inclination of the bottom edge of corners after
// they are mapped through h. Rotating the warped image by the negated value
// levels the document.
func ResidualTilt(h homography.Matrix, corners [4]geometry.Point) float64 {
	mapped := h.TransformPoints(corners)
	bottom := BoundaryLines(mapped)[2]
	// coincident corners: nothing to level
	if !bottom.Valid() {
		return 0
	}
	return bottom.Inclination()
}
