package rectify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/homography"
)

func rampImage(w, h int) *grayscale.Image {
	img := grayscale.New(w, h)
	for y := range h {
		for x := range w {
			img.Set(x, y, byte(x*10+y))
		}
	}
	return img
}

func TestWarpIdentity(t *testing.T) {
	img := rampImage(20, 20)
	out, err := Warp(img, homography.Identity(), 2)
	require.NoError(t, err)
	require.Equal(t, img.Width, out.Width)
	require.Equal(t, img.Height, out.Height)

	for y := range 19 {
		for x := range 19 {
			require.Equal(t, img.At(x, y), out.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
	// The last row and column have no right/lower neighbour to sample from.
	assert.Zero(t, out.At(19, 5))
	assert.Zero(t, out.At(5, 19))
}

func TestWarpTranslation(t *testing.T) {
	img := rampImage(20, 20)
	h := homography.Matrix{{1, 0, 5.5}, {0, 1, 3.5}, {0, 0, 1}}
	out, err := Warp(img, h, 1)
	require.NoError(t, err)

	assert.Equal(t, img.At(4, 6), out.At(10, 10))
	assert.Equal(t, img.At(0, 6), out.At(6, 10))
	assert.Zero(t, out.At(5, 10), "maps left of the source")
	assert.Zero(t, out.At(10, 3), "maps above the source")
	assert.Equal(t, img.At(13, 15), out.At(19, 19))
}

func TestWarpSingular(t *testing.T) {
	h := homography.Matrix{{1, 2, 3}, {2, 4, 6}, {0, 0, 0}}
	_, err := Warp(rampImage(4, 4), h, 1)
	assert.ErrorIs(t, err, homography.ErrSingular)
}

func TestWarpWorkerIndependent(t *testing.T) {
	img := rampImage(25, 17)
	h := homography.Matrix{{1.1, 0.05, -2}, {-0.03, 0.95, 1.5}, {0.0004, 0.0002, 1}}
	a, err := Warp(img, h, 1)
	require.NoError(t, err)
	b, err := Warp(img, h, 4)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRotateZeroIsIdentity(t *testing.T) {
	img := rampImage(15, 11)
	out, err := Rotate(img, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestRotateQuarterTurnIsClockwise(t *testing.T) {
	img := grayscale.New(41, 41)
	for y := 19; y <= 21; y++ {
		for x := 29; x <= 31; x++ {
			img.Set(x, y, 200)
		}
	}
	out, err := Rotate(img, math.Pi/2, 2)
	require.NoError(t, err)

	assert.Equal(t, byte(200), out.At(20, 30), "right of centre moves below it")
	assert.Zero(t, out.At(30, 20))
	assert.Zero(t, out.At(20, 10))
}

func TestRotateSmallAngleKeepsCentre(t *testing.T) {
	img := grayscale.Filled(41, 41, 200)
	out, err := Rotate(img, 0.1, 2)
	require.NoError(t, err)

	assert.Equal(t, byte(200), out.At(20, 20))
	assert.Zero(t, out.At(0, 0), "corner samples fall outside the source")
	assert.Zero(t, out.At(40, 40))
}

func TestBoundaryLines(t *testing.T) {
	c := [4]geometry.Point{{X: 10, Y: 10}, {X: 90, Y: 12}, {X: 88, Y: 70}, {X: 12, Y: 68}}
	lines := BoundaryLines(c)
	for i, l := range lines {
		a, b := c[i], c[(i+1)%4]
		assert.InDelta(t, 0, l.DeterminePosition(a.X, a.Y), 1e-9)
		assert.InDelta(t, 0, l.DeterminePosition(b.X, b.Y), 1e-9)
	}
}

func TestResidualTilt(t *testing.T) {
	level := [4]geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	assert.InDelta(t, 0, ResidualTilt(homography.Identity(), level), 1e-12)

	// Bottom edge falls to the right: clockwise on screen.
	tilted := [4]geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 110}, {X: 0, Y: 100}}
	assert.InDelta(t, math.Atan(0.1), ResidualTilt(homography.Identity(), tilted), 1e-9)

	shift := homography.Matrix{{1, 0, 7}, {0, 1, -3}, {0, 0, 1}}
	assert.InDelta(t, math.Atan(0.1), ResidualTilt(shift, tilted), 1e-9)
}

func TestResidualTiltAfterRectification(t *testing.T) {
	src := [4]geometry.Point{{X: 60, Y: 50}, {X: 240, Y: 60}, {X: 250, Y: 350}, {X: 50, Y: 340}}
	dst := [4]geometry.Point{{X: 45, Y: 51}, {X: 245, Y: 51}, {X: 245, Y: 345}, {X: 45, Y: 345}}
	h, err := homography.Solve(src, dst)
	require.NoError(t, err)
	assert.Less(t, math.Abs(ResidualTilt(h, src)), 0.01)
}
