package eval

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pmezard/go-difflib/difflib"
)

// Normalize converts v to the value encoding/json would produce for it, so
// YAML-decoded expectations and JSON-decoded model output compare equal.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("not JSON-representable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Match reports whether actual equals expected after normalization.
func Match(expected, actual any) (bool, error) {
	e, err := Normalize(expected)
	if err != nil {
		return false, err
	}
	a, err := Normalize(actual)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(e, a), nil
}

// Diff renders a unified diff between the indented JSON forms of expected
// and actual. Map keys are sorted, so equal values always diff empty.
func Diff(expected, actual any) (string, error) {
	e, err := json.MarshalIndent(expected, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal expected: %w", err)
	}
	a, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal actual: %w", err)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(e) + "\n"),
		B:        difflib.SplitLines(string(a) + "\n"),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
