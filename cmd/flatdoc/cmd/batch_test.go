package cmd

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/testutil"
)

type batchSummary struct {
	Files []struct {
		Input  string `json:"input"`
		Output string `json:"output"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Error  string `json:"error"`
	} `json:"files"`
	Total   int `json:"total"`
	Failed  int `json:"failed"`
	Workers int `json:"workers"`
}

func TestBatchCommandJSONSummary(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "out")
	testutil.WriteFixtures(t, in, testutil.StandardDocuments()...)

	out, _, err := execute(t, "batch", in,
		"--output-dir", outDir, "--workers", "2", "--progress", "none", "--summary", "json")
	require.NoError(t, err)

	var summary batchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, summary.Workers)
	for _, f := range summary.Files {
		assert.Empty(t, f.Error)
		assert.Equal(t, outDir, filepath.Dir(f.Output))
		assert.True(t, testutil.FileExists(f.Output), f.Output)
		assert.InDelta(t, 200, f.Width, 40)
		assert.InDelta(t, 300, f.Height, 40)
	}
}

func TestBatchCommandTextSummaryAndProgress(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())

	out, stderr, err := execute(t, "batch", paths["upright"], "--format", "tiff", "--suffix", "_scan")
	require.NoError(t, err)

	assert.Contains(t, out, "Processing Statistics")
	assert.Contains(t, out, "upright_scan.tiff")
	assert.Contains(t, stderr, "1/1")
	assert.True(t, testutil.FileExists(filepath.Join(dir, "upright_scan.tiff")))
}

func TestBatchCommandKeepFormat(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())

	_, _, err := execute(t, "batch", paths["upright"], "--keep-format", "--format", "jpeg", "--progress", "none")
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(filepath.Join(dir, "upright_flat.png")))
}

func TestBatchCommandContinueOnError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	testutil.WriteFixtures(t, in, testutil.UprightDocument(), testutil.BlankPhoto())
	report := filepath.Join(dir, "report.csv")

	_, _, err := execute(t, "batch", in, "--continue-on-error", "--progress", "log",
		"--summary", "csv", "--summary-file", report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")

	f, err := os.Open(report)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "input", records[0][0])

	// blank.png sorts before upright.png
	assert.True(t, strings.HasSuffix(records[1][0], "blank.png"))
	assert.NotEmpty(t, records[1][6])
	assert.Empty(t, records[2][6])
	assert.True(t, testutil.FileExists(filepath.Join(in, "upright_flat.png")))
}

func TestBatchCommandIncludeExclude(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFixtures(t, dir, testutil.StandardDocuments()...)

	out, _, err := execute(t, "batch", dir, "--exclude", "perspective*", "--progress", "none", "--summary", "json")
	require.NoError(t, err)

	var summary batchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Files, 1)
	assert.Equal(t, "upright.png", filepath.Base(summary.Files[0].Input))
}

func TestBatchCommandErrors(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteFixtures(t, dir, testutil.UprightDocument())

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no arguments", []string{"batch"}, "requires at least 1 arg"},
		{"empty directory", []string{"batch", t.TempDir()}, "no image files found"},
		{"summary format", []string{"batch", paths["upright"], "--summary", "xml"}, "unknown summary format"},
		{"progress mode", []string{"batch", paths["upright"], "--progress", "spinner"}, "invalid progress mode"},
		{"workers", []string{"batch", paths["upright"], "--workers", "0"}, "invalid batch workers"},
		{"empty suffix", []string{"batch", paths["upright"], "--suffix", ""}, "empty suffix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
