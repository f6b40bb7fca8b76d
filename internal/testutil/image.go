package testutil

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

// DocumentConfig describes a synthetic photograph of a sheet of paper lying
// on a uniform surface.
type DocumentConfig struct {
	Width, Height int
	Corners       [4]geometry.Point // TL, TR, BR, BL, clockwise on screen
	Paper         uint8
	Background    uint8
	Ink           uint8
	Label         string  // printed at the centre of the sheet when non-empty
	Blur          float64 // gaussian sigma applied to the whole photo
}

// DefaultDocumentConfig returns an upright 200x300 sheet centred in a
// 300x400 frame on a black surface.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Width:  300,
		Height: 400,
		Corners: [4]geometry.Point{
			{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 250, Y: 350}, {X: 50, Y: 350},
		},
		Paper:      180,
		Background: 0,
		Ink:        60,
	}
}

// AspectRatio returns the long/short ratio of the averaged opposite sides.
func (c DocumentConfig) AspectRatio() float64 {
	q := c.Corners
	w := (q[0].Dist(q[1]) + q[3].Dist(q[2])) / 2
	h := (q[0].Dist(q[3]) + q[1].Dist(q[2])) / 2
	return math.Max(w, h) / math.Min(w, h)
}

// GenerateDocument renders cfg. A pixel belongs to the sheet when its centre
// lies inside the corner polygon.
func GenerateDocument(cfg DocumentConfig) *grayscale.Image {
	img := grayscale.Filled(cfg.Width, cfg.Height, cfg.Background)
	q := cfg.Corners
	for y := range cfg.Height {
		row := img.Row(y)
		for x := range row {
			if insideQuad(q, float64(x)+0.5, float64(y)+0.5) {
				row[x] = cfg.Paper
			}
		}
	}

	if cfg.Label != "" {
		drawLabel(img, cfg)
	}
	if cfg.Blur > 0 {
		blurred := imaging.Blur(AsImageGray(img), cfg.Blur)
		for y := range img.Height {
			row := img.Row(y)
			for x := range row {
				row[x] = blurred.Pix[y*blurred.Stride+x*4]
			}
		}
	}
	return img
}

func insideQuad(q [4]geometry.Point, px, py float64) bool {
	for i := range q {
		a, b := q[i], q[(i+1)%4]
		cross := float64(b.X-a.X)*(py-float64(a.Y)) - float64(b.Y-a.Y)*(px-float64(a.X))
		if cross < 0 {
			return false
		}
	}
	return true
}

func drawLabel(img *grayscale.Image, cfg DocumentConfig) {
	face := basicfont.Face7x13
	var cx, cy int
	for _, p := range cfg.Corners {
		cx += p.X
		cy += p.Y
	}
	cx, cy = cx/4, cy/4

	width := font.MeasureString(face, cfg.Label).Ceil()
	d := &font.Drawer{
		Dst:  AsImageGray(img),
		Src:  image.NewUniform(color.Gray{Y: cfg.Ink}),
		Face: face,
		Dot:  fixed.P(cx-width/2, cy+face.Metrics().Ascent.Ceil()/2),
	}
	d.DrawString(cfg.Label)
}

// AsImageGray wraps img without copying.
func AsImageGray(img *grayscale.Image) *image.Gray {
	return &image.Gray{Pix: img.Pix, Stride: img.Width, Rect: image.Rect(0, 0, img.Width, img.Height)}
}

// WriteDocument renders cfg as a PNG file in dir and returns its path.
func WriteDocument(t *testing.T, dir, name string, cfg DocumentConfig) string {
	t.Helper()

	path := filepath.Join(dir, name)
	SaveImage(t, AsImageGray(GenerateDocument(cfg)), path)
	return path
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	f, err := os.Create(path) //nolint:gosec // G304: test file creation with controlled path
	require.NoError(t, err, "failed to create file %s", path)
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, png.Encode(f, img), "failed to encode PNG image")
}

// MeanAbsDiff returns the mean absolute pixel difference of two images of
// equal size, or +Inf when the sizes differ.
func MeanAbsDiff(a, b *grayscale.Image) float64 {
	if a.Width != b.Width || a.Height != b.Height {
		return math.Inf(1)
	}
	if len(a.Pix) == 0 {
		return 0
	}
	var sum int
	for i, v := range a.Pix {
		d := int(v) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a.Pix))
}
