package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func debugPath(dir, kind string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	ts := time.Now().UnixNano()
	return filepath.Join(dir, fmt.Sprintf("flat_%s_%d.png", kind, ts)), nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

// dumpEdgesPNG writes the binary edge map of the working copy.
func dumpEdgesPNG(dir string, edges *grayscale.Image) (string, error) {
	path, err := debugPath(dir, "edges")
	if err != nil {
		return "", err
	}
	return path, writePNG(path, utils.ToImageGray(edges))
}

// dumpOverlayPNG draws the detected quadrilateral and its corners over src.
func dumpOverlayPNG(dir string, src *grayscale.Image, quad [4]geometry.Point) (string, error) {
	path, err := debugPath(dir, "overlay")
	if err != nil {
		return "", err
	}
	canvas := utils.ToRGBA(src)
	utils.DrawPolygon(canvas, quad[:], color.RGBA{255, 0, 0, 255}, 2)
	for _, p := range quad {
		utils.DrawMarker(canvas, p, color.RGBA{0, 255, 0, 255}, 3)
	}
	return path, writePNG(path, canvas)
}

// dumpComparePNG places src and dst side by side with the target rectangle
// outlined on the right.
func dumpComparePNG(dir string, src, dst *grayscale.Image, target [4]geometry.Point) (string, error) {
	path, err := debugPath(dir, "compare")
	if err != nil {
		return "", err
	}
	gap := 10
	outW := src.Width + gap + dst.Width
	outH := max(src.Height, dst.Height)
	canvas := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := range src.Height {
		for x, v := range src.Row(y) {
			canvas.Set(x, y, color.Gray{Y: v})
		}
	}
	xoff := src.Width + gap
	for y := range dst.Height {
		for x, v := range dst.Row(y) {
			canvas.Set(xoff+x, y, color.Gray{Y: v})
		}
	}
	shifted := make([]geometry.Point, len(target))
	for i, p := range target {
		shifted[i] = geometry.Point{X: p.X + xoff, Y: p.Y}
	}
	utils.DrawPolygon(canvas, shifted, color.RGBA{0, 255, 0, 255}, 2)
	return path, writePNG(path, canvas)
}
