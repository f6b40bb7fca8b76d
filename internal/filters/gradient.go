package filters

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/mempool"
	"github.com/MeKo-Tech/flatdoc/internal/parallel"
)

// ErrInvalidKernel is returned for convolution kernels that are not odd and square.
var ErrInvalidKernel = errors.New("filters: kernel must be odd-sized and square")

// Kernel is a square convolution matrix indexed [row][col].
type Kernel [][]float64

// SobelKernel is the vertical Sobel operator. Its transpose is the horizontal one.
func SobelKernel() Kernel {
	return Kernel{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
}

// PrewittKernel is the vertical Prewitt operator.
func PrewittKernel() Kernel {
	return Kernel{
		{-1, -1, -1},
		{0, 0, 0},
		{1, 1, 1},
	}
}

// ScharrKernel is the vertical Scharr operator.
func ScharrKernel() Kernel {
	return Kernel{
		{-3, -10, -3},
		{0, 0, 0},
		{3, 10, 3},
	}
}

// KernelByName returns the operator called name ("sobel", "prewitt" or
// "scharr"). The empty name selects Sobel.
func KernelByName(name string) (Kernel, error) {
	switch strings.ToLower(name) {
	case "", "sobel":
		return SobelKernel(), nil
	case "prewitt":
		return PrewittKernel(), nil
	case "scharr":
		return ScharrKernel(), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidKernel, name)
}

// Validate checks the kernel is odd-sized and square.
func (k Kernel) Validate() error {
	n := len(k)
	if n == 0 || n%2 != 1 {
		return fmt.Errorf("%w: %d rows", ErrInvalidKernel, n)
	}
	for i, row := range k {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidKernel, i, len(row), n)
		}
	}
	return nil
}

// Transpose returns the orthogonal operator.
func (k Kernel) Transpose() Kernel {
	n := len(k)
	t := make(Kernel, n)
	for i := range n {
		t[i] = make([]float64, n)
		for j := range n {
			t[i][j] = k[j][i]
		}
	}
	return t
}

// GradientEdgeDetect computes sqrt(gx²+gy²) with k and its transpose for
// every interior pixel, saturated to 255. A border of half the kernel width
// stays 0. The output plane comes from mempool and may be handed back with
// mempool.PutBytes once unused.
func GradientEdgeDetect(img *grayscale.Image, k Kernel, workers int) (*grayscale.Image, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	kt := k.Transpose()
	half := len(k) / 2
	out := &grayscale.Image{Width: img.Width, Height: img.Height, Pix: mempool.GetBytes(img.Width * img.Height)}
	// Pooled planes carry old pixels; the border is never written below.
	clear(out.Pix)
	if img.Width <= 2*half || img.Height <= 2*half {
		return out, nil
	}

	err := parallel.ForRange(half, img.Height-half, workers, func(y int) {
		row := out.Row(y)
		for x := half; x < img.Width-half; x++ {
			gx := convolve(img, k, x, y)
			gy := convolve(img, kt, x, y)
			row[x] = saturate(math.Sqrt(float64(gx*gx + gy*gy)))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// convolve applies k centred on (x, y). Each product is truncated to an
// integer before summing.
func convolve(img *grayscale.Image, k Kernel, x, y int) int {
	half := len(k) / 2
	w := img.Width
	sum := 0
	for i := -half; i <= half; i++ {
		base := (y+i)*w + x
		kr := k[i+half]
		for j := -half; j <= half; j++ {
			sum += int(float64(img.Pix[base+j]) * kr[j+half])
		}
	}
	return sum
}

// saturate clamps a magnitude into a pixel. Values above 255 stay strong
// edges instead of wrapping around to weak ones.
func saturate(v float64) byte {
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return byte(v)
}
