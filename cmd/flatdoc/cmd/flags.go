package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/flatdoc/internal/config"
)

// addRectifyFlags registers the pipeline overrides shared by flatten and batch.
func addRectifyFlags(f *pflag.FlagSet) {
	f.String("kernel", "sobel", "gradient kernel: sobel, prewitt or scharr")
	f.Int("working-height", 400, "height of the downsampled copy used for line detection")
	f.Int("median-passes", 3, "median filter passes before edge detection")
	f.Float64("aspect-tolerance", 0.4, "allowed deviation from the expected page ratio (0 disables the check)")
	f.Int("threads", 0, "goroutines per pipeline stage (0 = number of CPUs)")
	f.String("debug-dir", "", "write edge map and corner overlay PNGs to this directory")
}

// addOutputFlags registers the encoding overrides shared by flatten and batch.
func addOutputFlags(f *pflag.FlagSet) {
	f.StringP("format", "f", "png", "output format: png, jpeg, bmp or tiff")
	f.Int("jpeg-quality", 90, "JPEG quality (1-100)")
	f.String("suffix", "_flat", "suffix appended to the input name")
}

// applyRectifyFlags copies explicitly set pipeline flags over cfg.
func applyRectifyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("kernel") {
		cfg.Rectify.Kernel, _ = flags.GetString("kernel")
	}
	if flags.Changed("working-height") {
		cfg.Rectify.WorkingHeight, _ = flags.GetInt("working-height")
	}
	if flags.Changed("median-passes") {
		cfg.Rectify.MedianPasses, _ = flags.GetInt("median-passes")
	}
	if flags.Changed("aspect-tolerance") {
		cfg.Rectify.AspectTolerance, _ = flags.GetFloat64("aspect-tolerance")
	}
	if flags.Changed("threads") {
		cfg.Rectify.Workers, _ = flags.GetInt("threads")
	}
	if flags.Changed("debug-dir") {
		cfg.Rectify.DebugDir, _ = flags.GetString("debug-dir")
	}
}

// applyOutputFlags copies explicitly set encoding flags over cfg.
func applyOutputFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("jpeg-quality") {
		cfg.Output.JPEGQuality, _ = flags.GetInt("jpeg-quality")
	}
	if flags.Changed("suffix") {
		cfg.Output.Suffix, _ = flags.GetString("suffix")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
