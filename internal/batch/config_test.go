package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "_flat", cfg.Suffix)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, utils.FormatPNG, cfg.Encode.Format)
	assert.False(t, cfg.ContinueOnError)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers must be >= 0"},
		{"separator in suffix", func(c *Config) { c.Suffix = "a/b" }, "path separators"},
		{"unknown format", func(c *Config) { c.Encode.Format = "gif" }, "unsupported image format"},
		{"empty suffix in place", func(c *Config) { c.Suffix = "" }, "empty suffix"},
		{"bad rectify", func(c *Config) { c.Rectify.WorkingHeight = 1 }, "working height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("empty suffix with output dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Suffix = ""
		cfg.OutputDir = t.TempDir()
		assert.NoError(t, cfg.Validate())
	})
}

func TestWorkerCount(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.workerCount(2))
	assert.Equal(t, 4, cfg.workerCount(10))
	assert.Equal(t, 1, cfg.workerCount(0))

	cfg.Workers = 0
	assert.GreaterOrEqual(t, cfg.workerCount(100), 1)
}
