package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

// DefaultWorkingHeight is the height of the downsampled copy used for line detection.
const DefaultWorkingHeight = 400

// Luminance weights applied to 8-bit R, G and B.
const (
	LumaR = 0.2125
	LumaG = 0.7154
	LumaB = 0.0721
)

// ErrUnsupportedFormat is returned for file extensions or encodings that
// cannot be read or written.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToGrayscale converts any decoded image to 8-bit luminance. Alpha is
// ignored and pixels with equal channels pass through unchanged.
func ToGrayscale(img image.Image) *grayscale.Image {
	b := img.Bounds()
	out := grayscale.New(b.Dx(), b.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := range out.Height {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Row(y), g.Pix[off:off+out.Width])
		}
		return out
	}

	for y := range out.Height {
		row := out.Row(y)
		for x := range out.Width {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if c.R == c.G && c.G == c.B {
				row[x] = c.R
				continue
			}
			row[x] = byte(float64(c.R)*LumaR + float64(c.G)*LumaG + float64(c.B)*LumaB)
		}
	}
	return out
}

// ToImageGray wraps g as an *image.Gray sharing its pixel buffer.
func ToImageGray(g *grayscale.Image) *image.Gray {
	return &image.Gray{Pix: g.Pix, Stride: g.Width, Rect: image.Rect(0, 0, g.Width, g.Height)}
}

// fromNRGBA takes the red channel of an image whose channels are equal.
func fromNRGBA(img *image.NRGBA) *grayscale.Image {
	b := img.Bounds()
	out := grayscale.New(b.Dx(), b.Dy())
	for y := range out.Height {
		src := img.Pix[y*img.Stride:]
		row := out.Row(y)
		for x := range row {
			row[x] = src[4*x]
		}
	}
	return out
}

// WorkingCopy resamples img to the given height with Lanczos filtering,
// preserving the aspect ratio. The returned scale is
// original width / working width and maps working-copy distances back to
// the original resolution.
func WorkingCopy(img *grayscale.Image, height int) (*grayscale.Image, float64, error) {
	if img.Empty() {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is empty")}
	}
	if height <= 0 {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid working height %d", height)}
	}
	if img.Height == height {
		return img.Clone(), 1, nil
	}

	resized := imaging.Resize(ToImageGray(img), 0, height, imaging.Lanczos)
	work := fromNRGBA(resized)
	if work.Empty() {
		return nil, 0, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("%dx%d collapses at height %d", img.Width, img.Height, height),
		}
	}
	return work, float64(img.Width) / float64(work.Width), nil
}
