package filters

import (
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

const histSize = 256

// Histogram counts pixel intensities. Each worker fills a private partial
// histogram; partials are summed after the join.
func Histogram(img *grayscale.Image, workers int) ([histSize]int, error) {
	var hist [histSize]int
	bands := parallel.Plan(0, img.Height, workers)
	partials := make([][histSize]int, len(bands))
	err := parallel.ForBands(bands, func(b parallel.Band) {
		p := &partials[b.Index]
		for y := b.Start; y < b.End; y++ {
			for _, v := range img.Row(y) {
				p[v]++
			}
		}
	})
	if err != nil {
		return hist, err
	}
	for _, p := range partials {
		for i, c := range p {
			hist[i] += c
		}
	}
	return hist, nil
}

// OtsuThreshold returns the threshold t maximising the between-class
// variance w1(1-w1)(mu1-mu2)², where class 1 holds the intensities strictly
// below t. The first (lowest) maximising t wins; an image with a single
// intensity yields 0.
func OtsuThreshold(img *grayscale.Image, workers int) (int, error) {
	hist, err := Histogram(img, workers)
	if err != nil {
		return 0, err
	}
	return otsuFromHistogram(hist), nil
}

func otsuFromHistogram(hist [histSize]int) int {
	var m, n int
	for t, c := range hist {
		m += t * c
		n += c
	}
	if n == 0 {
		return 0
	}

	maxSigma := -1.0
	threshold := 0
	var alpha, beta int
	for t := 1; t < histSize; t++ {
		alpha += (t - 1) * hist[t-1]
		beta += hist[t-1]
		if beta == 0 || beta == n {
			continue
		}
		w1 := float64(beta) / float64(n)
		d := float64(alpha)/float64(beta) - float64(m-alpha)/float64(n-beta)
		sigma := w1 * (1 - w1) * d * d
		if sigma > maxSigma {
			maxSigma = sigma
			threshold = t
		}
	}
	return threshold
}

// Binarize maps pixels strictly below threshold to 0 and the rest to 255.
func Binarize(img *grayscale.Image, threshold, workers int) (*grayscale.Image, error) {
	out := grayscale.New(img.Width, img.Height)
	err := parallel.ForRows(img.Height, workers, func(y int) {
		src := img.Row(y)
		dst := out.Row(y)
		for x, v := range src {
			if int(v) < threshold {
				dst[x] = 0
			} else {
				dst[x] = 255
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
