package batch

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Config holds all configuration for batch processing.
type Config struct {
	Rectify rectify.Config
	Encode  utils.EncodeOptions

	// Output naming: <dir>/<base><Suffix><ext>. An empty OutputDir writes
	// next to the input.
	Suffix    string
	OutputDir string

	// Parallel processing settings
	Workers         int // files rectified concurrently (0 = runtime.NumCPU())
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Pages selects the PDF pages to rectify, e.g. "1,3-5"; "" takes all.
	Pages string

	Progress ProgressCallback
}

// DefaultConfig returns sensible defaults for batch processing.
func DefaultConfig() Config {
	return Config{
		Rectify: rectify.DefaultConfig(),
		Encode:  utils.DefaultEncodeOptions(),
		Suffix:  "_flat",
		Workers: 4,
	}
}

// Validate checks cfg for values a batch run cannot start with.
func (c Config) Validate() error {
	var errs []error
	if err := c.Rectify.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if strings.ContainsAny(c.Suffix, `/\`) {
		errs = append(errs, fmt.Errorf("suffix must not contain path separators: %q", c.Suffix))
	}
	if c.Encode.Format != "" {
		if _, err := utils.ParseFormat(string(c.Encode.Format)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Suffix == "" && c.OutputDir == "" {
		errs = append(errs, errors.New("an empty suffix needs an output directory"))
	}
	return errors.Join(errs...)
}

func (c Config) workerCount(files int) int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, files))
}
