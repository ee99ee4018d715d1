package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// TestingT is the subset of testing.T the asserters need
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// AssertText compares command output line by line. Trailing whitespace and
// leading or trailing blank lines are ignored; a unified diff is reported on mismatch.
func AssertText(t TestingT, actual, expected string) bool {
	t.Helper()
	if diff := TextDiff(actual, expected); diff != "" {
		t.Errorf("Text assertion failed - unified diff:\n%s", diff)
		return false
	}
	return true
}

// TextDiff returns the unified diff between the normalized texts, or "" if equal
func TextDiff(actual, expected string) string {
	a, e := normalizeText(actual), normalizeText(expected)
	if a == e {
		return ""
	}
	edits := myers.ComputeEdits("", e, a)
	return fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
}

func normalizeText(text string) string {
	lines := strings.Split(strings.Trim(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n") + "\n"
}

// AssertJSON compares two JSON documents structurally. Keys named in ignored
// are dropped from both sides at any depth before comparing.
func AssertJSON(t TestingT, actualJSON, expectedJSON string, ignored ...string) bool {
	t.Helper()
	diff, err := JSONDiff(actualJSON, expectedJSON, ignored...)
	if err != nil {
		t.Errorf("JSON assertion failed: %v", err)
		return false
	}
	if diff != "" {
		t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// JSONDiff returns an ASCII diff of the documents, or "" if they match
func JSONDiff(actualJSON, expectedJSON string, ignored ...string) (string, error) {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return "", fmt.Errorf("invalid expected JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return "", fmt.Errorf("invalid actual JSON: %w", err)
	}

	for _, key := range ignored {
		dropKey(expected, key)
		dropKey(actual, key)
	}

	// gojsondiff only compares objects at the root
	expected = map[string]interface{}{"root": expected}
	actual = map[string]interface{}{"root": actual}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return "", fmt.Errorf("JSON comparison failed: %w", err)
	}
	if !diff.Modified() {
		return "", nil
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, err := f.Format(diff)
	if err != nil {
		return "", err
	}
	return out, nil
}

func dropKey(v interface{}, key string) {
	switch val := v.(type) {
	case map[string]interface{}:
		delete(val, key)
		for _, child := range val {
			dropKey(child, key)
		}
	case []interface{}:
		for _, child := range val {
			dropKey(child, key)
		}
	}
}
