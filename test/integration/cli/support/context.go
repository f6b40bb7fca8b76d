package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastDuration time.Duration

	// Test environment
	TempDir   string
	Documents map[string]string // fixture name -> path
	EnvVars   map[string]string

	// Server state
	Server *httptest.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPBody       []byte
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a scenario context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "flatdoc-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:   tempDir,
		Documents: map[string]string{},
		EnvVars:   map[string]string{},
	}, nil
}

// StopServer stops the test HTTP server if one is running.
func (testCtx *TestContext) StopServer() {
	if testCtx.Server != nil {
		testCtx.Server.Close()
		testCtx.Server = nil
	}
}

// Cleanup stops the server, restores the environment and removes the temp
// directory.
func (testCtx *TestContext) Cleanup() error {
	testCtx.StopServer()

	var errs []error
	for name := range testCtx.EnvVars {
		if err := os.Unsetenv(name); err != nil {
			errs = append(errs, fmt.Errorf("failed to unset %s: %w", name, err))
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove %s: %w", testCtx.TempDir, err))
	}
	return errors.Join(errs...)
}
