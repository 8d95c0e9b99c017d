// Package snapshot compares command output against golden files.
//
// Output is normalized before comparison: terminal escape sequences are
// stripped, line endings unified and trailing blanks removed, so a golden
// file holds exactly what a user would read.
package snapshot

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

// GoldenDir is the default directory for golden files
const GoldenDir = "testdata/golden"

var (
	// CSI sequences such as colours.
	csiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
	// OSC sequences, terminated by BEL or ST.
	oscRegex = regexp.MustCompile(`\x1b\][^\a\x1b]*(\a|\x1b\\)`)
	// DCS sequences, including tmux passthrough with doubled escapes.
	dcsRegex = regexp.MustCompile(`\x1bP(?:[^\x1b]|\x1b\x1b)*\x1b\\`)
)

// Snap compares output for one test.
type Snap struct {
	t         *testing.T
	goldenDir string
	update    bool
}

// New creates a Snap. UPDATE_GOLDEN=1 rewrites golden files instead of
// comparing.
func New(t *testing.T) *Snap {
	return &Snap{
		t:         t,
		goldenDir: GoldenDir,
		update:    os.Getenv("UPDATE_GOLDEN") == "1",
	}
}

// WithDir sets a custom golden file directory
func (s *Snap) WithDir(dir string) *Snap {
	s.goldenDir = dir
	return s
}

// Assert compares actual against testdata/golden/<name>.golden.
func (s *Snap) Assert(name, actual string) {
	s.t.Helper()

	goldenPath := filepath.Join(s.goldenDir, name+".golden")
	normalized := Normalize(actual)

	if s.update {
		if err := os.MkdirAll(s.goldenDir, 0755); err != nil {
			s.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(goldenPath, []byte(normalized), 0644); err != nil {
			s.t.Fatalf("failed to write golden file: %v", err)
		}
		s.t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.t.Fatalf("Golden file not found: %s\nRun with UPDATE_GOLDEN=1 to create it.\nActual output:\n%s", goldenPath, normalized)
		}
		s.t.Fatalf("failed to read golden file: %v", err)
	}

	if Normalize(string(expected)) != normalized {
		s.t.Errorf("Snapshot mismatch for %s\n\nExpected:\n%s\n\nActual:\n%s\n\nRun with UPDATE_GOLDEN=1 to update.",
			name, string(expected), normalized)
	}
}

// AssertContains checks that the normalized output contains substr.
func (s *Snap) AssertContains(actual, substr string) {
	s.t.Helper()
	normalized := Normalize(actual)
	if !strings.Contains(normalized, substr) {
		s.t.Errorf("Output does not contain expected substring.\nExpected to contain: %q\nActual:\n%s", substr, normalized)
	}
}

// AssertNotContains checks that the normalized output lacks substr.
func (s *Snap) AssertNotContains(actual, substr string) {
	s.t.Helper()
	normalized := Normalize(actual)
	if strings.Contains(normalized, substr) {
		s.t.Errorf("Output unexpectedly contains substring: %q\nActual:\n%s", substr, normalized)
	}
}

// Normalize strips escape sequences, converts CRLF to LF and trims trailing
// blanks from every line.
func Normalize(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// StripANSI removes CSI, OSC and DCS escape sequences.
func StripANSI(s string) string {
	s = dcsRegex.ReplaceAllString(s, "")
	s = oscRegex.ReplaceAllString(s, "")
	return csiRegex.ReplaceAllString(s, "")
}

// Lines returns the line count of the rendered output.
func Lines(s string) int {
	return len(strings.Split(StripANSI(s), "\n"))
}

// Width returns the widest line of the output in terminal cells.
func Width(s string) int {
	maxWidth := 0
	for _, line := range strings.Split(StripANSI(s), "\n") {
		maxWidth = max(maxWidth, runewidth.StringWidth(line))
	}
	return maxWidth
}
