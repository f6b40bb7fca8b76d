package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/config"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "flatdoc.yaml")

	out, _, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), *cfg)

	_, _, err = execute(t, "config", "init", "--output", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", "--output", path, "--force")
	require.NoError(t, err)
}

func TestConfigInitIgnoresBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("log_level: trace\n"), 0o600))

	_, _, err := execute(t, "--config", broken, "config", "init", "--output", filepath.Join(dir, "new.yaml"))
	require.NoError(t, err)

	_, _, err = execute(t, "--config", broken, "config", "show")
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "working_height: 400")
	assert.Contains(t, out, "rate_limit:")

	_, _, err = execute(t, "config", "show", "--format", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be yaml or json")
}

func TestConfigShowEnvironmentOverride(t *testing.T) {
	t.Setenv("FLATDOC_RECTIFY_KERNEL", "scharr")
	t.Setenv("FLATDOC_SERVER_RATE_LIMIT_REQUESTS_PER_DAY", "250")

	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "kernel: scharr")
	assert.Contains(t, out, "requests_per_day: 250")
}

func TestConfigPaths(t *testing.T) {
	out, _, err := execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "Environment prefix: FLATDOC")
	assert.Contains(t, out, "/etc/flatdoc")
}
