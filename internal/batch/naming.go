package batch

import (
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// OutputPath derives the file the rectified version of input is written to.
// outDir "" keeps the input directory; format "" keeps the input extension
// when it can be encoded.
func OutputPath(input, outDir, suffix string, format utils.Format) string {
	return PageOutputPath(input, "", outDir, suffix, format)
}

// PageOutputPath is OutputPath for one image of a multi-image input; label
// (see utils.GrayPage.Label) goes between the input stem and the suffix.
func PageOutputPath(input, label, outDir, suffix string, format utils.Format) string {
	dir := filepath.Dir(input)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, outputName(input, label, suffix, format))
}

func outputName(input, label, suffix string, format utils.Format) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext) + label
	if format == "" {
		// Inputs in a read-only format (webp, pdf) are written as PNG.
		if f, err := utils.ParseFormat(ext); err == nil {
			format = f
		} else {
			format = utils.FormatPNG
		}
	}
	if f, _ := utils.ParseFormat(ext); f != format {
		ext = format.Extension()
	}
	return stem + suffix + ext
}

// outputPath places the result for the image of s labelled label, mirroring
// the sub-directory s was discovered in when an output directory is
// configured.
func (s source) outputPath(cfg Config, label string) string {
	if cfg.OutputDir == "" {
		return PageOutputPath(s.path, label, "", cfg.Suffix, cfg.Encode.Format)
	}
	return filepath.Join(cfg.OutputDir, filepath.Dir(s.rel), outputName(s.path, label, cfg.Suffix, cfg.Encode.Format))
}
