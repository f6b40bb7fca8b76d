// Package grayscale holds the single-channel pixel buffer shared by every
// stage of the document recovery pipeline.
package grayscale

import (
	"errors"
	"fmt"
)

// ErrDimensions is returned when a buffer does not match its declared size.
var ErrDimensions = errors.New("grayscale: buffer size does not match dimensions")

// Image is a row-major 8-bit intensity buffer. Pix has exactly Width*Height
// elements, index y*Width+x.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed image.
func New(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{Width: width, Height: height, Pix: make([]byte, width*height)}
}

// FromPix wraps an existing buffer without copying it.
func FromPix(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrDimensions, width, height, len(pix))
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// Filled returns an image where every pixel has value v.
func Filled(width, height int, v byte) *Image {
	img := New(width, height)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{Width: m.Width, Height: m.Height, Pix: make([]byte, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// In reports whether (x, y) lies inside the image.
func (m *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At returns the intensity at (x, y), or 0 outside the image.
func (m *Image) At(x, y int) byte {
	if !m.In(x, y) {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set writes v at (x, y); writes outside the image are ignored.
func (m *Image) Set(x, y int, v byte) {
	if !m.In(x, y) {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Row returns the slice backing row y.
func (m *Image) Row(y int) []byte {
	return m.Pix[y*m.Width : (y+1)*m.Width]
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0
}
