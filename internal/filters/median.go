package filters

import (
	"slices"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/mempool"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// MedianFilter replaces every pixel by the median of itself and its existing
// 8-neighbours. Border pixels have fewer neighbours. The result's pixels come
// from mempool and may be handed back with mempool.PutBytes once unused.
func MedianFilter(img *grayscale.Image, workers int) (*grayscale.Image, error) {
	out := &grayscale.Image{Width: img.Width, Height: img.Height, Pix: mempool.GetBytes(img.Width * img.Height)}
	err := parallel.ForRows(img.Height, workers, func(y int) {
		var buf [9]byte
		row := out.Row(y)
		for x := range img.Width {
			row[x] = median(neighbourhood(img, x, y, buf[:0]))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MedianCleanup repairs pixels left at exactly 0 by the warp and rotation
// stages with their neighbourhood median. Other pixels pass through.
func MedianCleanup(img *grayscale.Image, workers int) (*grayscale.Image, error) {
	out := grayscale.New(img.Width, img.Height)
	err := parallel.ForRows(img.Height, workers, func(y int) {
		var buf [9]byte
		src := img.Row(y)
		row := out.Row(y)
		for x, v := range src {
			if v != 0 {
				row[x] = v
				continue
			}
			row[x] = median(neighbourhood(img, x, y, buf[:0]))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// neighbourhood appends the pixel at (x, y) followed by its in-bounds
// neighbours to buf.
func neighbourhood(img *grayscale.Image, x, y int, buf []byte) []byte {
	w, h := img.Width, img.Height
	buf = append(buf, img.Pix[y*w+x])
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= h {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := x + dx
			if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
				continue
			}
			buf = append(buf, img.Pix[ny*w+nx])
		}
	}
	return buf
}

// median sorts vals in place. Even counts average the two middle values; odd
// counts take the element at index ceil(n/2), one past the textbook median.
func median(vals []byte) byte {
	slices.Sort(vals)
	n := len(vals)
	switch {
	case n == 0:
		return 0
	case n == 1:
		return vals[0]
	case n%2 == 0:
		return byte((int(vals[n/2-1]) + int(vals[n/2])) / 2)
	default:
		return vals[(n+1)/2]
	}
}
