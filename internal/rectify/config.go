package rectify

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/flatdoc/internal/filters"
	"github.com/MeKo-Tech/flatdoc/internal/homography"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// Config holds configuration for the rectification process.
type Config struct {
	WorkingHeight   int            // height of the downsampled copy used for line detection
	Workers         int            // goroutines per bulk stage (0 = runtime.NumCPU())
	MedianPasses    int            // median passes before edge detection
	Kernel          filters.Kernel // gradient operator (nil = Sobel)
	AspectRatio     float64        // expected long/short side ratio
	AspectTolerance float64        // allowed deviation from AspectRatio (<= 0 disables the check)
	Hough           hough.Params   // accumulator constants
	// Debug dumping
	DebugDir string // if non-empty, writes edge map and corner overlay PNGs here
}

// DefaultConfig returns sensible defaults for rectification.
func DefaultConfig() Config {
	size := homography.DefaultSizeConfig()
	return Config{
		WorkingHeight:   utils.DefaultWorkingHeight,
		Workers:         0,
		MedianPasses:    filters.DefaultOptions().MedianPasses,
		Kernel:          filters.SobelKernel(),
		AspectRatio:     size.AspectRatio,
		AspectTolerance: size.AspectTolerance,
		Hough:           hough.DefaultParams(),
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.WorkingHeight < 16 {
		errs = append(errs, fmt.Errorf("working height must be at least 16, got %d", c.WorkingHeight))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.MedianPasses < 0 {
		errs = append(errs, fmt.Errorf("median passes must be >= 0, got %d", c.MedianPasses))
	}
	if c.Kernel != nil {
		if err := c.Kernel.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.AspectRatio < 1 {
		errs = append(errs, fmt.Errorf("aspect ratio must be >= 1 (long/short), got %g", c.AspectRatio))
	}
	if c.Hough.AngleStep <= 0 || c.Hough.AngleSpan <= 0 {
		errs = append(errs, errors.New("hough angle step and span must be positive"))
	}
	if c.Hough.SuppressAngleDivisor <= 0 || c.Hough.SuppressDistanceDivisor <= 0 {
		errs = append(errs, errors.New("hough suppression divisors must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) filterOptions() filters.Options {
	return filters.Options{MedianPasses: c.MedianPasses, Kernel: c.Kernel, Workers: c.Workers}
}

func (c Config) sizeConfig() homography.SizeConfig {
	return homography.SizeConfig{AspectRatio: c.AspectRatio, AspectTolerance: c.AspectTolerance}
}
