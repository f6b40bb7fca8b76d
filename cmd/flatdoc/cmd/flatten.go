package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/batch"
	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/geometry"
	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// flattenReport is the --json output of the flatten command.
type flattenReport struct {
	Input      string             `json:"input"`
	Page       int                `json:"page,omitempty"`
	Output     string             `json:"output"`
	Source     sourceInfo         `json:"source"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Corners    []point            `json:"corners"`
	Target     []point            `json:"target"`
	TiltDeg    float64            `json:"tilt_deg"`
	Crop       rectify.Bounds     `json:"crop"`
	TimingsMS  map[string]float64 `json:"timings_ms"`
	DebugFiles []string           `json:"debug_files,omitempty"`
}

type sourceInfo struct {
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
}

func toPoints(ps [4]geometry.Point) []point {
	out := make([]point, len(ps))
	for i, p := range ps {
		out[i] = point{X: p.X, Y: p.Y}
	}
	return out
}

func newFlattenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatten <image>",
		Short: "Rectify a single document photo",
		Long: `Detect the sheet of paper in a photograph, correct the perspective and
the residual tilt, crop to the page and write the result as grayscale.

Supported input formats: JPEG, PNG, BMP, TIFF, WebP, PDF
Supported output formats: PNG, JPEG, BMP, TIFF

Without --output the result is written next to the input as
<name><suffix>.<ext>. An --output path without --format picks the encoding
from its extension.

For a PDF the first image on --page is rectified and the default output is
<name>_p<page><suffix>.<ext>.

Examples:
  flatdoc flatten photo.jpg
  flatdoc flatten photo.jpg -o scan.tiff
  flatdoc flatten photo.jpg --kernel scharr --json
  flatdoc flatten photo.jpg --debug-dir debug/
  flatdoc flatten scan.pdf --page 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFlatten(cmd, args[0])
		},
	}

	cmd.Flags().StringP("output", "o", "", "output file (default <input dir>/<name><suffix>.<ext>)")
	cmd.Flags().Bool("json", false, "print the detected geometry and stage timings as JSON")
	cmd.Flags().Int("page", 1, "page to rectify when the input is a PDF")
	addRectifyFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	return cmd
}

func (a *app) runFlatten(cmd *cobra.Command, input string) error {
	cfg := *a.cfg
	applyRectifyFlags(cmd, &cfg)
	applyOutputFlags(cmd, &cfg)

	output, _ := cmd.Flags().GetString("output")
	if output != "" && !cmd.Flags().Changed("format") {
		f, err := utils.ParseFormat(filepath.Ext(output))
		if err != nil {
			return fmt.Errorf("cannot derive the output format from %s: %w", output, err)
		}
		cfg.Output.Format = string(f)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rc, err := cfg.ToRectifyConfig()
	if err != nil {
		return err
	}
	enc, err := cfg.ToEncodeOptions()
	if err != nil {
		return err
	}
	page := 0
	if utils.IsPDF(input) {
		page, _ = cmd.Flags().GetInt("page")
		if page < 1 {
			return fmt.Errorf("invalid --page %d (must be at least 1)", page)
		}
	}
	if output == "" {
		output = batch.PageOutputPath(input, utils.GrayPage{Page: page}.Label(), "", cfg.Output.Suffix, enc.Format)
	}
	if samePath(input, output) {
		return fmt.Errorf("%s: %w", input, batch.ErrOverwriteInput)
	}

	r, err := rectify.New(rc)
	if err != nil {
		return err
	}

	timer := common.NewNamedTimer("flatten")
	img, meta, err := loadInput(input, page)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", input, err)
	}
	res, err := r.Process(img)
	if err != nil {
		var se *rectify.StageError
		if errors.As(err, &se) {
			slog.Error("rectification failed", "input", input, "stage", se.Stage, "error", se.Err)
		}
		return fmt.Errorf("%s: %w", input, err)
	}
	if err := utils.SaveGrayscale(output, res.Image, enc); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	elapsed := timer.Stop()

	tiltDeg := res.Tilt * 180 / math.Pi
	slog.Info("document rectified",
		"input", input,
		"output", output,
		"width", res.Image.Width,
		"height", res.Image.Height,
		"tilt_deg", tiltDeg,
		"duration", elapsed)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		timings := make(map[string]float64, len(res.Timings))
		for _, t := range res.Timings {
			timings[t.Stage] = float64(t.Duration.Microseconds()) / 1000
		}
		return writeJSON(out, flattenReport{
			Input:  input,
			Page:   page,
			Output: output,
			Source: sourceInfo{
				Format:    meta.Format,
				Width:     meta.Width,
				Height:    meta.Height,
				SizeBytes: meta.SizeBytes,
			},
			Width:      res.Image.Width,
			Height:     res.Image.Height,
			Corners:    toPoints(res.Corners),
			Target:     toPoints(res.Target),
			TiltDeg:    tiltDeg,
			Crop:       res.Crop,
			TimingsMS:  timings,
			DebugFiles: res.DebugFiles,
		})
	}
	_, err = fmt.Fprintf(out, "%s -> %s (%dx%d, tilt %.2f°)\n",
		input, output, res.Image.Width, res.Image.Height, tiltDeg)
	return err
}

// loadInput reads an image file, or the first image on page of a PDF.
func loadInput(input string, page int) (*grayscale.Image, utils.ImageMetadata, error) {
	if page == 0 {
		return utils.LoadGrayscale(input)
	}
	img, meta, err := utils.LoadPDFPage(input, page)
	if err != nil {
		return nil, meta, err
	}
	return utils.ToGrayscale(img), meta, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
