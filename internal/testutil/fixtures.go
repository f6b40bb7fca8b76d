package testutil

import (
	"testing"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
)

// DocumentFixture is a named synthetic photograph with the aspect ratio a
// correct rectification should reproduce.
type DocumentFixture struct {
	Name        string
	Description string
	Config      DocumentConfig
}

// UprightDocument is an axis-aligned sheet.
func UprightDocument() DocumentFixture {
	return DocumentFixture{
		Name:        "upright",
		Description: "axis-aligned 200x300 sheet on a black surface",
		Config:      DefaultDocumentConfig(),
	}
}

// PerspectiveDocument is a sheet photographed slightly from below and to the
// side: the top edge is shorter than the bottom and both are tilted.
func PerspectiveDocument() DocumentFixture {
	cfg := DefaultDocumentConfig()
	cfg.Corners = [4]geometry.Point{
		{X: 60, Y: 50}, {X: 240, Y: 60}, {X: 250, Y: 350}, {X: 50, Y: 340},
	}
	return DocumentFixture{
		Name:        "perspective",
		Description: "keystoned sheet with tilted top and bottom edges",
		Config:      cfg,
	}
}

// BlankPhoto has no sheet at all.
func BlankPhoto() DocumentFixture {
	cfg := DefaultDocumentConfig()
	cfg.Paper = cfg.Background
	return DocumentFixture{
		Name:        "blank",
		Description: "uniform surface without a document",
		Config:      cfg,
	}
}

// StandardDocuments returns the fixtures every rectification suite runs.
func StandardDocuments() []DocumentFixture {
	return []DocumentFixture{UprightDocument(), PerspectiveDocument()}
}

// WriteFixtures renders fixtures as <name>.png into dir and returns the paths
// keyed by fixture name.
func WriteFixtures(t *testing.T, dir string, fixtures ...DocumentFixture) map[string]string {
	t.Helper()

	paths := make(map[string]string, len(fixtures))
	for _, f := range fixtures {
		paths[f.Name] = WriteDocument(t, dir, f.Name+".png", f.Config)
	}
	return paths
}
