package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/batch"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func TestFlattenCommandDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())

	out, _, err := execute(t, "flatten", paths["upright"])
	require.NoError(t, err)

	want := filepath.Join(dir, "upright_flat.png")
	assert.Contains(t, out, paths["upright"]+" -> "+want)
	require.True(t, testutil.FileExists(want))

	img, meta, err := utils.LoadGrayscale(want)
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.InDelta(t, 200, img.Width, 40)
	assert.InDelta(t, 300, img.Height, 40)
}

func TestFlattenCommandOutputFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.PerspectiveDocument())
	output := filepath.Join(dir, "scan.tiff")

	_, _, err := execute(t, "flatten", paths["perspective"], "-o", output)
	require.NoError(t, err)

	_, meta, err := utils.LoadImage(output)
	require.NoError(t, err)
	assert.Equal(t, "tiff", meta.Format)
}

func TestFlattenCommandExplicitFormatWins(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())
	output := filepath.Join(dir, "scan.png")

	_, _, err := execute(t, "flatten", paths["upright"], "-o", output, "--format", "jpeg")
	require.NoError(t, err)

	_, meta, err := utils.LoadImage(output)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
}

func TestFlattenCommandJSON(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())

	out, _, err := execute(t, "flatten", paths["upright"], "--json", "--kernel", "scharr", "--suffix", "_scan")
	require.NoError(t, err)

	var report flattenReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, paths["upright"], report.Input)
	assert.Equal(t, filepath.Join(dir, "upright_scan.png"), report.Output)
	assert.Equal(t, 300, report.Source.Width)
	assert.Equal(t, 400, report.Source.Height)
	assert.Len(t, report.Corners, 4)
	assert.Len(t, report.Target, 4)
	assert.Equal(t, report.Width, report.Crop.Right-report.Crop.Left)
	assert.InDelta(t, 0, report.TiltDeg, 2)
	assert.Contains(t, report.TimingsMS, "hough")
}

func TestFlattenCommandDebugDir(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())
	debugDir := filepath.Join(dir, "debug")

	out, _, err := execute(t, "flatten", paths["upright"], "--json", "--debug-dir", debugDir)
	require.NoError(t, err)

	var report flattenReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotEmpty(t, report.DebugFiles)
	for _, f := range report.DebugFiles {
		assert.True(t, testutil.FileExists(f), f)
	}
}

func TestFlattenCommandPDFPage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	scan := testutil.WriteDocumentPDF(t, dir, "scan.pdf",
		testutil.UprightDocument().Config,
		testutil.PerspectiveDocument().Config)

	out, _, err := execute(t, "flatten", scan, "--page", "2", "--json")
	require.NoError(t, err)

	var report flattenReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Page)
	assert.Equal(t, filepath.Join(dir, "scan_p2_flat.png"), report.Output)
	assert.Equal(t, utils.FormatNamePDF, report.Source.Format)
	assert.Equal(t, 300, report.Source.Width)
	require.True(t, testutil.FileExists(report.Output))

	out, _, err = execute(t, "flatten", scan)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "scan_p1_flat.png"))

	_, _, err = execute(t, "flatten", scan, "--page", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--page")

	_, _, err = execute(t, "flatten", scan, "--page", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestFlattenCommandErrors(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument(), testutil.BlankPhoto())

	t.Run("no arguments", func(t *testing.T) {
		_, _, err := execute(t, "flatten")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := execute(t, "flatten", filepath.Join(dir, "nope.png"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load")
	})

	t.Run("no document", func(t *testing.T) {
		_, _, err := execute(t, "flatten", paths["blank"])
		assert.ErrorIs(t, err, hough.ErrNoLine)
		assert.False(t, testutil.FileExists(filepath.Join(dir, "blank_flat.png")))
	})

	t.Run("overwrite input", func(t *testing.T) {
		_, _, err := execute(t, "flatten", paths["upright"], "-o", paths["upright"])
		assert.ErrorIs(t, err, batch.ErrOverwriteInput)
	})

	t.Run("unknown output extension", func(t *testing.T) {
		_, _, err := execute(t, "flatten", paths["upright"], "-o", filepath.Join(dir, "out.gif"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot derive the output format")
	})

	t.Run("invalid kernel", func(t *testing.T) {
		_, _, err := execute(t, "flatten", paths["upright"], "--kernel", "laplace")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid rectify.kernel")
	})
}
