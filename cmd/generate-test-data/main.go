package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// manifestEntry describes one generated photograph.
type manifestEntry struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	File        string            `json:"file"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Corners     [4]geometry.Point `json:"corners"`
	AspectRatio float64           `json:"aspect_ratio"`
	ExpectError bool              `json:"expect_error"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir   = flag.String("out", "testdata/documents", "Output directory, relative to the project root")
		formats  = flag.String("formats", "png", "Comma-separated output formats (png, jpeg, bmp, tiff)")
		manifest = flag.Bool("manifest", true, "Write manifest.json next to the images")
		verbose  = flag.Bool("v", false, "Verbose output")
		help     = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic document photographs for flatdoc testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # PNG photos and manifest\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -formats png,jpeg,tiff # every photo in three encodings\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	encodings, err := parseFormats(*formats)
	if err != nil {
		slog.Error("Invalid formats", "error", err)
		os.Exit(1)
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if *verbose {
		slog.Info("Options", "dir", dir, "formats", encodings, "manifest", *manifest)
	}

	entries, err := generateDocuments(dir, encodings)
	if err != nil {
		slog.Error("Failed to generate documents", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated document photos", "count", len(entries), "dir", dir)

	if *manifest {
		if err := writeManifest(filepath.Join(dir, "manifest.json"), entries); err != nil {
			slog.Error("Failed to write manifest", "error", err)
			os.Exit(1)
		}
	}
}

func parseFormats(list string) ([]utils.Format, error) {
	var out []utils.Format
	for s := range strings.SplitSeq(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		f, err := utils.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no output format given")
	}
	return out, nil
}

// documentSet extends the standard fixtures with variants that exercise
// text on the page, soft edges and the no-document failure.
func documentSet() []testutil.DocumentFixture {
	set := testutil.StandardDocuments()

	labelled := testutil.UprightDocument()
	labelled.Name = "labelled"
	labelled.Description = "upright sheet with a printed label"
	labelled.Config.Label = "INVOICE 2024-117"
	set = append(set, labelled)

	blurred := testutil.PerspectiveDocument()
	blurred.Name = "perspective_blurred"
	blurred.Description = "keystoned sheet photographed slightly out of focus"
	blurred.Config.Blur = 1.2
	set = append(set, blurred)

	return append(set, testutil.BlankPhoto())
}

func generateDocuments(dir string, formats []utils.Format) ([]manifestEntry, error) {
	if err := testutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var entries []manifestEntry
	for _, fx := range documentSet() {
		img := testutil.GenerateDocument(fx.Config)
		for _, f := range formats {
			name := fx.Name + f.Extension()
			path := filepath.Join(dir, name)
			if err := utils.SaveGrayscale(path, img, utils.EncodeOptions{Format: f, JPEGQuality: 95}); err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", name, err)
			}
			entries = append(entries, manifestEntry{
				Name:        fx.Name,
				Description: fx.Description,
				File:        name,
				Width:       fx.Config.Width,
				Height:      fx.Config.Height,
				Corners:     fx.Config.Corners,
				AspectRatio: fx.Config.AspectRatio(),
				ExpectError: fx.Config.Paper == fx.Config.Background,
			})
		}
	}
	return entries, nil
}

func writeManifest(path string, entries []manifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
