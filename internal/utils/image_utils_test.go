package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

func TestDrawRectAndPolygon(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	rect := image.Rect(2, 2, 10, 8)
	DrawRect(img, rect, color.RGBA{0, 255, 0, 255}, 1)
	if img.RGBAAt(2, 2) == (color.RGBA{}) {
		t.Fatalf("expected top-left pixel colored")
	}
	if img.RGBAAt(5, 5) != (color.RGBA{}) {
		t.Fatalf("expected rectangle interior untouched")
	}
	poly := []geometry.Point{{X: 12, Y: 2}, {X: 18, Y: 2}, {X: 18, Y: 8}, {X: 12, Y: 8}}
	DrawPolygon(img, poly, color.RGBA{0, 0, 255, 255}, 1)
	if img.RGBAAt(12, 2) == (color.RGBA{}) {
		t.Fatalf("expected polygon pixel colored")
	}
	if img.RGBAAt(15, 8) == (color.RGBA{}) {
		t.Fatalf("expected closing edge colored")
	}
}

func TestDrawPolygonClipsOutsidePoints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	poly := []geometry.Point{{X: -5, Y: -5}, {X: 15, Y: -5}, {X: 15, Y: 5}, {X: -5, Y: 5}}
	DrawPolygon(img, poly, color.RGBA{255, 0, 0, 255}, 3)
	if img.RGBAAt(5, 5) == (color.RGBA{}) {
		t.Fatalf("expected visible part of the bottom edge drawn")
	}
}

func TestDrawMarker(t *testing.T) {
	img := ToRGBA(grayscale.New(9, 9))
	DrawMarker(img, geometry.Point{X: 4, Y: 4}, color.NRGBA{R: 255, A: 255}, 1)
	for _, p := range []image.Point{{3, 3}, {4, 4}, {5, 5}} {
		if img.NRGBAAt(p.X, p.Y).R != 255 {
			t.Fatalf("expected marker at %v", p)
		}
	}
	if img.NRGBAAt(6, 6).R != 0 {
		t.Fatalf("marker too large")
	}
}

func TestToRGBAReplicatesChannel(t *testing.T) {
	g := grayscale.Filled(3, 2, 77)
	rgba := ToRGBA(g)
	c := rgba.NRGBAAt(2, 1)
	if c.R != 77 || c.G != 77 || c.B != 77 || c.A != 255 {
		t.Fatalf("unexpected colour %+v", c)
	}
}
