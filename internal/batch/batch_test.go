package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

type recordingProgress struct {
	total     int
	updates   []int
	errors    int
	completed bool
}

func (r *recordingProgress) OnStart(total int)         { r.total = total }
func (r *recordingProgress) OnProgress(current, _ int) { r.updates = append(r.updates, current) }
func (r *recordingProgress) OnComplete()               { r.completed = true }
func (r *recordingProgress) OnError(int, error)        { r.errors++ }

func writeCorrupt(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
	return path
}

func TestRun_StandardDocuments(t *testing.T) {
	in := testutil.TempSubdir(t, "in")
	out := testutil.TempSubdir(t, "out")
	fixtures := testutil.WriteFixtures(t, in, testutil.StandardDocuments()...)

	progress := &recordingProgress{}
	cfg := DefaultConfig()
	cfg.OutputDir = out
	cfg.Workers = 2
	cfg.Progress = progress

	res, err := Run(context.Background(), []string{in}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Zero(t, res.Failed())
	assert.NoError(t, res.FirstError())

	// sorted: perspective.png < upright.png
	assert.Equal(t, fixtures["perspective"], res.Files[0].Input)
	assert.Equal(t, fixtures["upright"], res.Files[1].Input)

	for _, f := range res.Files {
		require.True(t, f.OK(), "%s: %v", f.Input, f.Err)
		assert.Equal(t, filepath.Join(out, strings.TrimSuffix(filepath.Base(f.Input), ".png")+"_flat.png"), f.Output)
		assert.Positive(t, f.Duration)
		assert.Equal(t, 300, f.Source.Width)
		assert.Equal(t, 400, f.Source.Height)

		img, _, err := utils.LoadGrayscale(f.Output)
		require.NoError(t, err)
		assert.Equal(t, f.Width, img.Width)
		assert.Equal(t, f.Height, img.Height)
		assert.InDelta(t, 200, img.Width, 40)
		assert.InDelta(t, 300, img.Height, 40)
	}

	assert.Equal(t, 2, progress.total)
	assert.Equal(t, []int{1, 2}, progress.updates)
	assert.Zero(t, progress.errors)
	assert.True(t, progress.completed)

	assert.Equal(t, 2, res.Stats.Items)
	assert.Equal(t, 2, res.Stats.Workers)
	assert.Positive(t, res.Stats.Duration)
}

func TestRun_InPlaceSuffix(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocument(t, dir, "doc.png", testutil.DefaultDocumentConfig())

	cfg := DefaultConfig()
	cfg.Encode.Format = utils.FormatTIFF
	res, err := Run(context.Background(), []string{path}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(dir, "doc_flat.tiff"), res.Files[0].Output)
	assert.FileExists(t, res.Files[0].Output)
}

func TestRun_NoFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "notes.txt"))

	_, err := Run(context.Background(), []string{dir}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = -3
	_, err := Run(context.Background(), []string{t.TempDir()}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch config")
}

func TestRun_StopsOnFirstError(t *testing.T) {
	dir := t.TempDir()
	bad := writeCorrupt(t, dir, "a_corrupt.png")
	testutil.WriteFixtures(t, dir, testutil.UprightDocument(), testutil.PerspectiveDocument())

	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.OutputDir = testutil.TempSubdir(t, "out")

	res, err := Run(context.Background(), []string{dir}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
	require.NotNil(t, res)
	require.Len(t, res.Files, 3)

	assert.Equal(t, bad, res.Files[0].Input)
	assert.Error(t, res.Files[0].Err)
	assert.NotErrorIs(t, res.Files[0].Err, ErrSkipped)
	for _, f := range res.Files[1:] {
		assert.ErrorIs(t, f.Err, ErrSkipped)
		assert.NoFileExists(t, OutputPath(f.Input, cfg.OutputDir, cfg.Suffix, cfg.Encode.Format))
	}
	assert.Equal(t, 3, res.Failed())
}

func TestRun_ContinueOnError(t *testing.T) {
	dir := t.TempDir()
	writeCorrupt(t, dir, "a_corrupt.png")
	blank := testutil.WriteFixtures(t, dir, testutil.BlankPhoto())["blank"]
	upright := testutil.WriteFixtures(t, dir, testutil.UprightDocument())["upright"]

	progress := &recordingProgress{}
	cfg := DefaultConfig()
	cfg.ContinueOnError = true
	cfg.OutputDir = testutil.TempSubdir(t, "out")
	cfg.Progress = progress

	res, err := Run(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, 2, res.Failed())
	assert.Equal(t, 2, progress.errors)
	assert.Equal(t, 2, res.Stats.Failed)

	byInput := map[string]FileResult{}
	for _, f := range res.Files {
		byInput[f.Input] = f
	}
	var stageErr *rectify.StageError
	require.ErrorAs(t, byInput[blank].Err, &stageErr)
	assert.Equal(t, rectify.StageHough, stageErr.Stage)
	assert.True(t, byInput[upright].OK())
	assert.FileExists(t, byInput[upright].Output)
}

func TestRun_RefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocument(t, dir, "doc.png", testutil.DefaultDocumentConfig())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Suffix = ""
	cfg.OutputDir = dir

	res, err := Run(context.Background(), []string{path}, cfg)
	require.ErrorIs(t, err, ErrOverwriteInput)
	assert.ErrorIs(t, res.Files[0].Err, ErrOverwriteInput)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFixtures(t, dir, testutil.StandardDocuments()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.OutputDir = testutil.TempSubdir(t, "out")
	res, err := Run(ctx, []string{dir}, cfg)
	require.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	for _, f := range res.Files {
		assert.ErrorIs(t, f.Err, ErrSkipped)
	}
}

func TestRun_PDFPages(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	in := testutil.TempSubdir(t, "in")
	out := testutil.TempSubdir(t, "out")
	photo := testutil.WriteDocument(t, in, "photo.png", testutil.DefaultDocumentConfig())
	scan := testutil.WriteDocumentPDF(t, in, "scan.pdf",
		testutil.UprightDocument().Config,
		testutil.PerspectiveDocument().Config)

	progress := &recordingProgress{}
	cfg := DefaultConfig()
	cfg.OutputDir = out
	cfg.Workers = 2
	cfg.Progress = progress

	res, err := Run(context.Background(), []string{in}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, 3, res.Stats.Items)
	assert.Equal(t, 2, progress.total, "progress counts files, not pages")

	assert.Equal(t, photo, res.Files[0].Input)
	assert.Zero(t, res.Files[0].Page)
	assert.Equal(t, filepath.Join(out, "photo_flat.png"), res.Files[0].Output)

	for i, f := range res.Files[1:] {
		require.True(t, f.OK(), "page %d: %v", f.Page, f.Err)
		assert.Equal(t, scan, f.Input)
		assert.Equal(t, i+1, f.Page)
		assert.Equal(t, utils.FormatNamePDF, f.Source.Format)
		assert.Equal(t, filepath.Join(out, fmt.Sprintf("scan_p%d_flat.png", i+1)), f.Output)

		img, _, err := utils.LoadGrayscale(f.Output)
		require.NoError(t, err)
		assert.Equal(t, f.Width, img.Width)
		assert.InDelta(t, 1.5, float64(img.Height)/float64(img.Width), 0.15)
	}

	cfg.Pages = "2"
	cfg.OutputDir = testutil.TempSubdir(t, "page2")
	res, err = Run(context.Background(), []string{scan}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, 2, res.Files[0].Page)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "scan_p2_flat.png"), res.Files[0].Output)
}

func TestRun_UnreadablePDF(t *testing.T) {
	dir := t.TempDir()
	bad := writeCorrupt(t, dir, "broken.pdf")

	cfg := DefaultConfig()
	cfg.OutputDir = testutil.TempSubdir(t, "out")
	res, err := Run(context.Background(), []string{dir}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
	require.Len(t, res.Files, 1)
	assert.Zero(t, res.Files[0].Page)
	assert.Error(t, res.Files[0].Err)
}
