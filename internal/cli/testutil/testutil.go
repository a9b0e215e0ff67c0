// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
)

// ScenarioYAML is a short reference scenario: the full model over 120 days
// with the campaign opening on day 90.
const ScenarioYAML = `name: test scenario
lockdown:
  day: 60
vaccination:
  day: 90
grid:
  end: 120
  points: 121
`

// PolicyScript is a two-step policy: lockdown on day 60, reopening on 100.
const PolicyScript = `breakpoints = [60, 100]

def r0(t):
    if t < 60:
        return params.r0_before
    if t < 100:
        return params.r0_after
    return 4.0
`

// SetupTestProject creates a temporary project holding outbreak.yaml and
// policies/reopen.star.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "policies"), 0o755); err != nil {
		t.Fatalf("failed to create policies directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "outbreak.yaml"), []byte(ScenarioYAML), 0o644); err != nil {
		t.Fatalf("failed to create outbreak.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "policies", "reopen.star"), []byte(PolicyScript), 0o644); err != nil {
		t.Fatalf("failed to create reopen.star: %v", err)
	}
	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if fenceCount := strings.Count(md, "```"); fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
