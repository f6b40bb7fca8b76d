package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/flatdoc/internal/batch"
	"github.com/MeKo-Tech/flatdoc/internal/filters"
	"github.com/MeKo-Tech/flatdoc/internal/hough"
	"github.com/MeKo-Tech/flatdoc/internal/rectify"
	"github.com/MeKo-Tech/flatdoc/internal/server"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	rc := rectify.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Rectify: RectifyConfig{
			WorkingHeight:   rc.WorkingHeight,
			Workers:         rc.Workers,
			MedianPasses:    rc.MedianPasses,
			Kernel:          "sobel",
			AspectRatio:     rc.AspectRatio,
			AspectTolerance: rc.AspectTolerance,
			Hough: HoughConfig{
				AngleSteps:              int(math.Round(2 * math.Pi / rc.Hough.AngleStep)),
				SuppressAngleDivisor:    rc.Hough.SuppressAngleDivisor,
				SuppressDistanceDivisor: rc.Hough.SuppressDistanceDivisor,
			},
		},
		Output: OutputConfig{
			Format:      string(utils.FormatPNG),
			JPEGQuality: utils.DefaultEncodeOptions().JPEGQuality,
			Suffix:      "_flat",
		},
		Batch: BatchConfig{
			Workers:         4,
			Recursive:       false,
			ContinueOnError: false,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
	}
}

// Validate validates the configuration and returns all problems found.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if _, err := filters.KernelByName(c.Rectify.Kernel); err != nil {
		errs = append(errs, fmt.Errorf("invalid rectify.kernel: %w", err))
	}
	if c.Rectify.Hough.AngleSteps < 8 {
		errs = append(errs, fmt.Errorf("invalid rectify.hough.angle_steps: %d (must be at least 8)", c.Rectify.Hough.AngleSteps))
	}
	if rc, err := c.ToRectifyConfig(); err == nil {
		if err := rc.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := utils.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("invalid output format: %w", err))
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Output.JPEGQuality))
	}
	if strings.ContainsAny(c.Output.Suffix, `/\`) {
		errs = append(errs, fmt.Errorf("invalid output suffix: %q (must not contain path separators)", c.Output.Suffix))
	}

	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB))
	}
	if c.Server.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout))
	}
	if c.Server.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("invalid max concurrent rectifications: %d (must not be negative)", c.Server.MaxConcurrent))
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.RequestsPerDay < 0 || rl.MaxMBPerDay < 0 {
		errs = append(errs, errors.New("invalid rate limit: limits must not be negative"))
	}

	return errors.Join(errs...)
}

// ToRectifyConfig converts the config to the rectification pipeline settings.
func (c *Config) ToRectifyConfig() (rectify.Config, error) {
	cfg := rectify.DefaultConfig()
	k, err := filters.KernelByName(c.Rectify.Kernel)
	if err != nil {
		return cfg, err
	}
	cfg.Kernel = k
	cfg.WorkingHeight = c.Rectify.WorkingHeight
	cfg.Workers = c.Rectify.Workers
	cfg.MedianPasses = c.Rectify.MedianPasses
	cfg.AspectRatio = c.Rectify.AspectRatio
	cfg.AspectTolerance = c.Rectify.AspectTolerance
	cfg.DebugDir = c.Rectify.DebugDir

	cfg.Hough = hough.DefaultParams()
	if c.Rectify.Hough.AngleSteps > 0 {
		cfg.Hough.AngleStep = 2 * math.Pi / float64(c.Rectify.Hough.AngleSteps)
	}
	cfg.Hough.SuppressAngleDivisor = c.Rectify.Hough.SuppressAngleDivisor
	cfg.Hough.SuppressDistanceDivisor = c.Rectify.Hough.SuppressDistanceDivisor
	return cfg, nil
}

// ToEncodeOptions converts the output section to encoder options.
func (c *Config) ToEncodeOptions() (utils.EncodeOptions, error) {
	f, err := utils.ParseFormat(c.Output.Format)
	if err != nil {
		return utils.EncodeOptions{}, err
	}
	return utils.EncodeOptions{Format: f, JPEGQuality: c.Output.JPEGQuality}, nil
}

// ToBatchConfig converts the config to batch runner settings.
func (c *Config) ToBatchConfig() (batch.Config, error) {
	rc, err := c.ToRectifyConfig()
	if err != nil {
		return batch.Config{}, err
	}
	enc, err := c.ToEncodeOptions()
	if err != nil {
		return batch.Config{}, err
	}
	return batch.Config{
		Rectify:         rc,
		Encode:          enc,
		Suffix:          c.Output.Suffix,
		OutputDir:       c.Batch.OutputDir,
		Workers:         c.Batch.Workers,
		ContinueOnError: c.Batch.ContinueOnError,
		Recursive:       c.Batch.Recursive,
	}, nil
}

// ToServerConfig converts the config to HTTP server settings.
func (c *Config) ToServerConfig() (server.Config, error) {
	rc, err := c.ToRectifyConfig()
	if err != nil {
		return server.Config{}, err
	}
	enc, err := c.ToEncodeOptions()
	if err != nil {
		return server.Config{}, err
	}
	rl := c.Server.RateLimit
	return server.Config{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		CORSOrigin:    c.Server.CORSOrigin,
		MaxUploadMB:   int64(c.Server.MaxUploadMB),
		TimeoutSec:    c.Server.TimeoutSec,
		MaxConcurrent: c.Server.MaxConcurrent,
		Rectify:       rc,
		Encode:        enc,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			RequestsPerDay:    rl.RequestsPerDay,
			MaxMBPerDay:       rl.MaxMBPerDay,
		},
	}, nil
}

// ToYAML renders the configuration as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// FromYAML parses a YAML document on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config yaml: %w", err)
	}
	return &cfg, nil
}
