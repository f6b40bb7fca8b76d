// Package filters turns a grayscale working image into a binary edge map:
// median smoothing, gradient-magnitude edge detection and Otsu binarisation.
// Every filter returns a new image; inputs are never modified.
package filters

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/mempool"
)

// Options controls Preprocess.
type Options struct {
	MedianPasses int    // number of median passes before edge detection
	Kernel       Kernel // gradient operator; nil means SobelKernel
	Workers      int    // 0 = runtime.NumCPU()
}

// DefaultOptions returns the preprocessing used by the rectifier.
func DefaultOptions() Options {
	return Options{MedianPasses: 3, Kernel: SobelKernel()}
}

// Preprocess smooths img, detects gradient edges and binarises them. The
// threshold is chosen by Otsu's method on img itself, before smoothing, and
// applied to the gradient magnitudes. Edge pixels are 255 in the result.
func Preprocess(img *grayscale.Image, opts Options) (*grayscale.Image, error) {
	k := opts.Kernel
	if k == nil {
		k = SobelKernel()
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}

	// Intermediate images are owned here and recycled; img is not.
	release := func(tmp *grayscale.Image) {
		if tmp != img {
			mempool.PutBytes(tmp.Pix)
		}
	}

	cur := img
	for i := range opts.MedianPasses {
		next, err := MedianFilter(cur, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("median pass %d: %w", i+1, err)
		}
		release(cur)
		cur = next
	}

	grad, err := GradientEdgeDetect(cur, k, opts.Workers)
	release(cur)
	if err != nil {
		return nil, fmt.Errorf("gradient: %w", err)
	}
	defer mempool.PutBytes(grad.Pix)

	t, err := EdgeThreshold(img, opts.Workers)
	if err != nil {
		return nil, err
	}
	slog.Debug("edge threshold selected", "threshold", t)

	edges, err := Binarize(grad, t, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}
	return edges, nil
}

// EdgeThreshold is the gradient cut-off Preprocess uses for img: Otsu's
// threshold of the unsmoothed intensities. A single-valued image yields
// 256, so no gradient passes.
func EdgeThreshold(img *grayscale.Image, workers int) (int, error) {
	t, err := OtsuThreshold(img, workers)
	if err != nil {
		return 0, fmt.Errorf("otsu: %w", err)
	}
	if t == 0 {
		// Nothing separates paper from background.
		t = histSize
	}
	return t, nil
}

// CountEdges returns the number of 255 pixels in an edge map.
func CountEdges(edges *grayscale.Image) int {
	n := 0
	for _, v := range edges.Pix {
		if v == 255 {
			n++
		}
	}
	return n
}
