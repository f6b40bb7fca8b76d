package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/flatdoc/cmd/flatdoc/cmd"
	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// fixtures are the synthetic photos a scenario can ask for by name.
var fixtures = map[string]testutil.DocumentFixture{
	"upright":     testutil.UprightDocument(),
	"perspective": testutil.PerspectiveDocument(),
	"blank":       testutil.BlankPhoto(),
}

// path resolves a scenario path relative to the temp directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteCommandVariables expands {tmp} to the scenario directory.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}

// theTestDocumentsAreAvailable writes every fixture into the temp directory.
func (testCtx *TestContext) theTestDocumentsAreAvailable() error {
	for name := range fixtures {
		if err := testCtx.aDocumentPhotoAt(name, name+".png"); err != nil {
			return err
		}
	}
	return nil
}

// aDocumentPhotoAt renders the named fixture to path.
func (testCtx *TestContext) aDocumentPhotoAt(fixture, path string) error {
	f, ok := fixtures[fixture]
	if !ok {
		return fmt.Errorf("unknown fixture %q", fixture)
	}
	full := testCtx.path(path)
	if err := testutil.EnsureDir(filepath.Dir(full)); err != nil {
		return err
	}
	gray := testutil.GenerateDocument(f.Config)
	if err := utils.SaveGrayscale(full, gray, utils.EncodeOptions{}); err != nil {
		return fmt.Errorf("failed to write fixture %s: %w", path, err)
	}
	testCtx.Documents[fixture] = full
	return nil
}

// theFileContains writes content to a file in the temp directory.
func (testCtx *TestContext) theFileContains(path string, content *godog.DocString) error {
	full := testCtx.path(path)
	if err := testutil.EnsureDir(filepath.Dir(full)); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content.Content), 0o600)
}

// theEnvironmentVariableIsSetTo sets an environment variable until cleanup.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.EnvVars[name] = value
	return os.Setenv(name, value)
}

// iRunCommand runs a flatdoc command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 || parts[0] != "flatdoc" {
		return fmt.Errorf("not a flatdoc command: %q", command)
	}

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	testCtx.LastError = root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nOutput: %s\nStderr: %s",
			testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded when it should have failed\nOutput: %s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theProgressOutputShouldContain checks stderr, where progress and logs go.
func (testCtx *TestContext) theProgressOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theErrorShouldMention verifies the error text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error but the command succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), errorText) {
		return fmt.Errorf("error does not mention '%s': %v", errorText, testCtx.LastError)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theJSONFieldShouldBe compares a dotted JSON path in the output.
func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	return jsonFieldEquals([]byte(testCtx.LastOutput), field, testCtx.substituteCommandVariables(expected))
}

// theFileShouldExist checks a file in the temp directory.
func (testCtx *TestContext) theFileShouldExist(path string) error {
	if !testutil.FileExists(testCtx.path(path)) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

// theFileShouldNotExist checks a file is absent from the temp directory.
func (testCtx *TestContext) theFileShouldNotExist(path string) error {
	if testutil.FileExists(testCtx.path(path)) {
		return fmt.Errorf("file %s exists", path)
	}
	return nil
}

// theDirectoryShouldContainFiles counts the entries matching pattern in dir.
func (testCtx *TestContext) theDirectoryShouldContainFiles(dir string, n int, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(testCtx.path(dir), pattern))
	if err != nil {
		return err
	}
	if len(matches) != n {
		return fmt.Errorf("%s holds %d files matching %s, want %d: %v", dir, len(matches), pattern, n, matches)
	}
	return nil
}

// theFileShouldContain checks the content of a file in the temp directory.
func (testCtx *TestContext) theFileShouldContain(path, expected string) error {
	data, err := os.ReadFile(testCtx.path(path))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", path, expected, data)
	}
	return nil
}

// theImageShouldBeAPortraitPage checks the decoded size and encoding of a result.
func (testCtx *TestContext) theImageShouldBeAPortraitPage(path, format string) error {
	img, meta, err := utils.LoadImage(testCtx.path(path))
	if err != nil {
		return err
	}
	if meta.Format != format {
		return fmt.Errorf("%s is encoded as %s, want %s", path, meta.Format, format)
	}
	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		return fmt.Errorf("%s is %dx%d, want a portrait page", path, b.Dx(), b.Dy())
	}
	return nil
}

// RegisterCLISteps registers the command line step definitions.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^the test documents are available$`, testCtx.theTestDocumentsAreAvailable)
	sc.Step(`^an? "([^"]*)" document photo at "([^"]*)"$`, testCtx.aDocumentPhotoAt)
	sc.Step(`^the file "([^"]*)" contains:$`, testCtx.theFileContains)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the progress output should contain "([^"]*)"$`, testCtx.theProgressOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files? matching "([^"]*)"$`,
		testCtx.theDirectoryShouldContainFiles)
	sc.Step(`^"([^"]*)" should be a portrait page encoded as "([^"]*)"$`, testCtx.theImageShouldBeAPortraitPage)
}
