package rectify

import (
	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// MaskBackground paints every pixel outside the document white, in place.
// lines are [top, bottom, left, right] as returned by corners.SortEquations;
// a pixel is outside when it is on or above the top line, on or below the
// bottom line, on or left of the left line, or on or right of the right line.
func MaskBackground(img *grayscale.Image, lines [4]geometry.EquationLine, workers int) error {
	top, bottom, left, right := lines[0], lines[1], lines[2], lines[3]
	return parallel.ForRows(img.Height, workers, func(y int) {
		row := img.Row(y)
		for x := range row {
			if top.DeterminePosition(x, y) <= 0 ||
				bottom.DeterminePosition(x, y) >= 0 ||
				left.DeterminePosition(x, y) <= 0 ||
				right.DeterminePosition(x, y) >= 0 {
				row[x] = 255
			}
		}
	})
}
