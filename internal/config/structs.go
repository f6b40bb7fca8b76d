//nolint:lll
package config

// Config represents the complete configuration for the flatdoc application.
// It includes settings for all commands (flatten, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Rectification pipeline
	Rectify RectifyConfig `mapstructure:"rectify" yaml:"rectify" json:"rectify"`

	// Output encoding
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// RectifyConfig contains the perspective correction settings.
type RectifyConfig struct {
	WorkingHeight   int         `mapstructure:"working_height" yaml:"working_height" json:"working_height"`
	Workers         int         `mapstructure:"workers" yaml:"workers" json:"workers"`
	MedianPasses    int         `mapstructure:"median_passes" yaml:"median_passes" json:"median_passes"`
	Kernel          string      `mapstructure:"kernel" yaml:"kernel" json:"kernel"`
	AspectRatio     float64     `mapstructure:"aspect_ratio" yaml:"aspect_ratio" json:"aspect_ratio"`
	AspectTolerance float64     `mapstructure:"aspect_tolerance" yaml:"aspect_tolerance" json:"aspect_tolerance"`
	DebugDir        string      `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	Hough           HoughConfig `mapstructure:"hough" yaml:"hough" json:"hough"`
}

// HoughConfig exposes the accumulator resolution (angle bins per full turn)
// and the suppression window divisors.
type HoughConfig struct {
	AngleSteps              int `mapstructure:"angle_steps" yaml:"angle_steps" json:"angle_steps"`
	SuppressAngleDivisor    int `mapstructure:"suppress_angle_divisor" yaml:"suppress_angle_divisor" json:"suppress_angle_divisor"`
	SuppressDistanceDivisor int `mapstructure:"suppress_distance_divisor" yaml:"suppress_distance_divisor" json:"suppress_distance_divisor"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	JPEGQuality int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	Suffix      string `mapstructure:"suffix" yaml:"suffix" json:"suffix"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxConcurrent   int    `mapstructure:"max_concurrent" yaml:"max_concurrent" json:"max_concurrent"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits; zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	RequestsPerDay    int   `mapstructure:"requests_per_day" yaml:"requests_per_day" json:"requests_per_day"`
	MaxMBPerDay       int64 `mapstructure:"max_mb_per_day" yaml:"max_mb_per_day" json:"max_mb_per_day"`
}
