package rectify

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// ErrNoContent is returned by Crop when the centre lines hold no document pixels.
var ErrNoContent = errors.New("rectify: no document content found")

// Bounds is a half-open pixel rectangle [Left, Right) x [Top, Bottom).
type Bounds struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Width returns Right-Left.
func (b Bounds) Width() int { return b.Right - b.Left }

// Height returns Bottom-Top.
func (b Bounds) Height() int { return b.Bottom - b.Top }

func isBackground(v byte) bool { return v == 0 || v == 255 }

// ContentBounds finds the document along the centre column (from the top and
// the bottom) and the centre row (from the right and the left): the first
// pixel that is neither 0 nor 255 marks each side. The width is reduced to a
// multiple of 4 by pulling in the right side.
func ContentBounds(img *grayscale.Image) (Bounds, error) {
	w, h := img.Width, img.Height
	if img.Empty() {
		return Bounds{}, ErrNoContent
	}
	cx, cy := w/2, h/2
	b := Bounds{Top: -1, Right: -1, Bottom: -1, Left: -1}

	for y := range h {
		if !isBackground(img.Pix[y*w+cx]) {
			b.Top = y
			break
		}
	}
	for x := w - 1; x >= 0; x-- {
		if !isBackground(img.Pix[cy*w+x]) {
			b.Right = x
			break
		}
	}
	for y := h - 1; y >= 0; y-- {
		if !isBackground(img.Pix[y*w+cx]) {
			b.Bottom = y
			break
		}
	}
	for x := range w {
		if !isBackground(img.Pix[cy*w+x]) {
			b.Left = x
			break
		}
	}

	if b.Top < 0 || b.Left < 0 {
		return b, ErrNoContent
	}
	b.Right -= b.Width() % 4
	if b.Width() <= 0 || b.Height() <= 0 {
		return b, fmt.Errorf("%w: bounds %+v", ErrNoContent, b)
	}
	return b, nil
}

// Crop cuts the document found by ContentBounds out of img.
func Crop(img *grayscale.Image, workers int) (*grayscale.Image, error) {
	b, err := ContentBounds(img)
	if err != nil {
		return nil, err
	}
	return cropTo(img, b, workers)
}

// cropTo copies the rows of b into a new image, one band of rows per worker.
func cropTo(img *grayscale.Image, b Bounds, workers int) (*grayscale.Image, error) {
	out := grayscale.New(b.Width(), b.Height())
	err := parallel.ForRows(out.Height, workers, func(y int) {
		src := img.Row(b.Top + y)
		copy(out.Row(y), src[b.Left:b.Right])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
