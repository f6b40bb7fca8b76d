package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLoader(t *testing.T) {
	assert.Same(t, viper.GetViper(), NewLoader().GetViper())
	v := viper.New()
	assert.Same(t, v, NewLoaderWith(v).GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "flatdoc.yaml", "log_level: debug\nrectify:\n  working_height: 300\n")

	l := NewLoaderWith(viper.New())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 300, cfg.Rectify.WorkingHeight)
	assert.Equal(t, 3, cfg.Rectify.MedianPasses)
	assert.Equal(t, "flatdoc.yaml", filepath.Base(l.GetConfigFileUsed()))
}

func TestLoadWithFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", `
rectify:
  kernel: scharr
  aspect_tolerance: 0
output:
  format: bmp
batch:
  workers: 2
  continue_on_error: true
server:
  port: 9191
`)
	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "scharr", cfg.Rectify.Kernel)
	assert.Zero(t, cfg.Rectify.AspectTolerance)
	assert.Equal(t, "bmp", cfg.Output.Format)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.True(t, cfg.Batch.ContinueOnError)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadWithFileErrors(t *testing.T) {
	_, err := NewLoaderWith(viper.New()).LoadWithFile("/does/not/exist.yaml")
	assert.ErrorContains(t, err, "does not exist")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "rectify: [unclosed\n")
	_, err = NewLoaderWith(viper.New()).LoadWithFile(bad)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoadValidation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "invalid.yaml", "log_level: chatty\n")

	_, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	assert.ErrorContains(t, err, "configuration validation failed")

	cfg, err := NewLoaderWith(viper.New()).LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.LogLevel)
}

func TestEnvironmentVariableOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLATDOC_LOG_LEVEL", "warn")
	t.Setenv("FLATDOC_RECTIFY_WORKING_HEIGHT", "256")
	t.Setenv("FLATDOC_RECTIFY_ASPECT_RATIO", "1.5")
	t.Setenv("FLATDOC_RECTIFY_HOUGH_ANGLE_STEPS", "720")
	t.Setenv("FLATDOC_BATCH_CONTINUE_ON_ERROR", "true")
	t.Setenv("FLATDOC_SERVER_MAX_UPLOAD_MB", "5")

	cfg, err := NewLoaderWith(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 256, cfg.Rectify.WorkingHeight)
	assert.InDelta(t, 1.5, cfg.Rectify.AspectRatio, 1e-12)
	assert.Equal(t, 720, cfg.Rectify.Hough.AngleSteps)
	assert.True(t, cfg.Batch.ContinueOnError)
	assert.Equal(t, 5, cfg.Server.MaxUploadMB)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f.yaml", "server:\n  port: 7000\n")
	t.Setenv("FLATDOC_SERVER_PORT", "7100")

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestExplicitSetWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLATDOC_OUTPUT_FORMAT", "bmp")
	l := NewLoaderWith(viper.New())
	l.Set("output.format", "tiff")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "tiff", cfg.Output.Format)
	assert.Equal(t, "tiff", l.GetString("output.format"))
	assert.Equal(t, "tiff", l.Get("output.format"))
}

func TestGetResolvedConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	l := NewLoaderWith(viper.New())
	_, err := l.Load()
	require.NoError(t, err)

	settings := l.GetResolvedConfig()
	require.Contains(t, settings, "rectify")
	require.Contains(t, settings, "server")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "flatdoc.yaml")

	path, err := GenerateDefaultConfigFile(target, false)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)

	_, err = GenerateDefaultConfigFile(target, false)
	assert.ErrorContains(t, err, "already exists")
	_, err = GenerateDefaultConfigFile(target, true)
	assert.NoError(t, err)
}

func TestGenerateDefaultConfigFileDefaultName(t *testing.T) {
	t.Chdir(t.TempDir())
	path, err := GenerateDefaultConfigFile("", false)
	require.NoError(t, err)
	assert.Equal(t, "flatdoc.yaml", path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "flatdoc"))
	assert.Equal(t, "/etc/flatdoc", paths[len(paths)-1])
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	NewLoaderWith(viper.New()).PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: FLATDOC")
	assert.Contains(t, buf.String(), "/etc/flatdoc")
}
