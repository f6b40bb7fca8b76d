package rectify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

// boxLines returns [top, bottom, left, right] for the axis-aligned box
// x0 < x < x1, y0 < y < y1 with normals pointing away from the origin.
func boxLines(x0, y0, x1, y1 int) [4]geometry.EquationLine {
	h := func(y int) geometry.EquationLine {
		p := geometry.Point{Y: y}
		return geometry.NewLineFromNormal(p, p)
	}
	v := func(x int) geometry.EquationLine {
		p := geometry.Point{X: x}
		return geometry.NewLineFromNormal(p, p)
	}
	return [4]geometry.EquationLine{h(y0), h(y1), v(x0), v(x1)}
}

func TestMaskBackground(t *testing.T) {
	for _, workers := range []int{1, 3} {
		img := grayscale.Filled(40, 40, 100)
		require.NoError(t, MaskBackground(img, boxLines(5, 10, 25, 30), workers))

		assert.Equal(t, byte(100), img.At(15, 20))
		assert.Equal(t, byte(255), img.At(15, 10), "on the top line")
		assert.Equal(t, byte(100), img.At(15, 11))
		assert.Equal(t, byte(255), img.At(15, 30), "on the bottom line")
		assert.Equal(t, byte(100), img.At(15, 29))
		assert.Equal(t, byte(255), img.At(5, 20), "on the left line")
		assert.Equal(t, byte(100), img.At(6, 20))
		assert.Equal(t, byte(255), img.At(25, 20), "on the right line")
		assert.Equal(t, byte(100), img.At(24, 20))
		assert.Equal(t, byte(255), img.At(0, 0))
		assert.Equal(t, byte(255), img.At(39, 39))

		kept := 0
		for _, v := range img.Pix {
			if v == 100 {
				kept++
			}
		}
		assert.Equal(t, 19*19, kept)
	}
}

func TestMaskBackgroundNeverDarkens(t *testing.T) {
	img := grayscale.New(20, 20)
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	orig := img.Clone()
	require.NoError(t, MaskBackground(img, boxLines(2, 2, 17, 17), 2))
	for i, v := range img.Pix {
		assert.True(t, v == orig.Pix[i] || v == 255)
	}
}
