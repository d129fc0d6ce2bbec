package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// SpecToken is the placeholder in a prompt template that receives the
// specification text.
const SpecToken = "##swagger_spec##"

// ErrNotText is returned when a file's content is not valid UTF-8.
var ErrNotText = errors.New("file is not valid UTF-8 text")

// Render returns a new string with every occurrence of SpecToken in tmpl
// replaced by spec. A template without the token is returned unchanged.
func Render(tmpl, spec string) string {
	return strings.ReplaceAll(tmpl, SpecToken, spec)
}

// ReadText reads the whole file at path and returns it as a string.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrNotText)
	}
	return string(data), nil
}
