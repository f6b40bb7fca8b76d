package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/flatdoc/internal/config"
	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// startServer serves the API from an httptest server built from cfg.
func (testCtx *TestContext) startServer(cfg config.Config) error {
	testCtx.StopServer()

	sc, err := cfg.ToServerConfig()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(sc)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.Server = httptest.NewServer(srv.Handler())
	return nil
}

// theServerIsRunning starts a server with the default configuration.
func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(config.DefaultConfig())
}

// theServerIsRunningWithRateLimit allows n requests per minute per client.
func (testCtx *TestContext) theServerIsRunningWithRateLimit(n int) error {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMinute = n
	return testCtx.startServer(cfg)
}

// theServerIsRunningWithUploadLimit caps uploads at mb megabytes.
func (testCtx *TestContext) theServerIsRunningWithUploadLimit(mb int) error {
	cfg := config.DefaultConfig()
	cfg.Server.MaxUploadMB = mb
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) do(req *http.Request) error {
	if testCtx.Server == nil {
		return errors.New("server is not running")
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

// iSendARequestTo issues a body-less request, e.g. "GET /health".
func (testCtx *TestContext) iSendARequestTo(method, path string) error {
	if testCtx.Server == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, testCtx.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUpload posts a file as the multipart "image" field, with an optional
// format form value.
func (testCtx *TestContext) iUpload(file, format string) error {
	if testCtx.Server == nil {
		return errors.New("server is not running")
	}
	data, err := os.ReadFile(testCtx.path(file))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(file))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if format != "" {
		if err := mw.WriteField("format", format); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.Server.URL+"/v1/flatten", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadTheFile(file string) error {
	return testCtx.iUpload(file, "")
}

func (testCtx *TestContext) iUploadTheFileAs(file, format string) error {
	return testCtx.iUpload(file, format)
}

// iUploadTheFileTimes uploads a file repeatedly, keeping the last response.
func (testCtx *TestContext) iUploadTheFileTimes(file string, n int) error {
	for range n {
		if err := testCtx.iUpload(file, ""); err != nil {
			return err
		}
	}
	return nil
}

// theResponseStatusShouldBe checks the last HTTP status.
func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPBody)
	}
	return nil
}

// theResponseHeaderShouldBe checks a header of the last response.
func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// theResponseHeaderShouldBeSet checks a header is present.
func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

// theResponseJSONFieldShouldBe compares a dotted JSON path in the body.
func (testCtx *TestContext) theResponseJSONFieldShouldBe(field, expected string) error {
	return jsonFieldEquals(testCtx.LastHTTPBody, field, expected)
}

// theResponseShouldContain checks the raw body.
func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), expected) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", expected, testCtx.LastHTTPBody)
	}
	return nil
}

// theResponseImageShouldBeAPortraitPage saves the body and checks it like a
// CLI result.
func (testCtx *TestContext) theResponseImageShouldBeAPortraitPage(format string) error {
	name := "response." + format
	if err := os.WriteFile(testCtx.path(name), testCtx.LastHTTPBody, 0o600); err != nil {
		return err
	}
	return testCtx.theImageShouldBeAPortraitPage(name, format)
}

// theRetryAfterHeaderShouldBeAtMost checks the rate limit back-off.
func (testCtx *TestContext) theRetryAfterHeaderShouldBeAtMost(seconds int) error {
	v := testCtx.LastHTTPHeaders.Get("Retry-After")
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("Retry-After %q is not a number", v)
	}
	if n <= 0 || n > seconds {
		return fmt.Errorf("Retry-After is %d, want 1..%d", n, seconds)
	}
	return nil
}

// RegisterServerSteps registers the HTTP step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the flatdoc server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the flatdoc server is running with a limit of (\d+) requests per minute$`,
		testCtx.theServerIsRunningWithRateLimit)
	sc.Step(`^the flatdoc server is running with an upload limit of (\d+) MB$`,
		testCtx.theServerIsRunningWithUploadLimit)

	sc.Step(`^I send a (GET|POST|PUT|DELETE|OPTIONS) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I upload "([^"]*)"$`, testCtx.iUploadTheFile)
	sc.Step(`^I upload "([^"]*)" as "([^"]*)"$`, testCtx.iUploadTheFileAs)
	sc.Step(`^I upload "([^"]*)" (\d+) times$`, testCtx.iUploadTheFileTimes)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseJSONFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be a portrait page encoded as "([^"]*)"$`,
		testCtx.theResponseImageShouldBeAPortraitPage)
	sc.Step(`^the "Retry-After" header should be at most (\d+) seconds$`, testCtx.theRetryAfterHeaderShouldBeAtMost)
}
