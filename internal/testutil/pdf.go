package testutil

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/require"
)

// WriteDocumentPDF renders every config as a PNG and imports the images into
// a PDF in dir, one page per config in order. It returns the PDF path.
func WriteDocumentPDF(t *testing.T, dir, name string, pages ...DocumentConfig) string {
	t.Helper()
	require.NotEmpty(t, pages, "a PDF needs at least one page")

	scratch := t.TempDir()
	images := make([]string, len(pages))
	for i, cfg := range pages {
		images[i] = WriteDocument(t, scratch, "page"+strconv.Itoa(i+1)+".png", cfg)
	}

	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, name)
	require.NoError(t, api.ImportImagesFile(images, path, nil, nil), "failed to build %s", name)
	return path
}
