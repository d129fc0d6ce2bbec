package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Format represents the export format type.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ExportMetadata describes how a call record was produced.
type ExportMetadata struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	CallgenVersion string    `json:"callgenVersion"`
	Model          string    `json:"model"`
	Endpoint       string    `json:"endpoint,omitempty"`
	Intent         string    `json:"intent"`
}

// Exporter handles exporting results in various formats.
type Exporter struct {
	Format   Format
	Metadata ExportMetadata
}

// DetectFormat detects the export format from the file extension.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Export writes result in the configured format.
func (e *Exporter) Export(result interface{}, w io.Writer) error {
	switch e.Format {
	case FormatJSON:
		return exportJSON(result, e.Metadata, w)
	case FormatMarkdown:
		return exportMarkdown(result, e.Metadata, w)
	case FormatText:
		return e.exportText(result, w)
	default:
		return fmt.Errorf("unsupported format: %s", e.Format)
	}
}

// exportText expects the caller to have rendered result to a string.
func (e *Exporter) exportText(result interface{}, w io.Writer) error {
	if str, ok := result.(string); ok {
		_, err := w.Write([]byte(str))
		return err
	}
	return fmt.Errorf("text format requires string input")
}
