package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONExport wraps the result with metadata for JSON output.
type JSONExport struct {
	Metadata ExportMetadata `json:"metadata"`
	Result   interface{}    `json:"result"`
}

// exportJSON exports the result as JSON with metadata.
func exportJSON(result interface{}, metadata ExportMetadata, w io.Writer) error {
	export := JSONExport{
		Metadata: metadata,
		Result:   result,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// exportMarkdown renders metadata as a header and the result as a JSON block.
func exportMarkdown(result interface{}, metadata ExportMetadata, w io.Writer) error {
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = fmt.Fprintf(w, "# Proposed calls\n\n"+
		"- **Intent:** %s\n"+
		"- **Model:** %s\n"+
		"- **Generated:** %s\n"+
		"- **callgen:** %s\n\n"+
		"```json\n%s\n```\n",
		metadata.Intent,
		metadata.Model,
		metadata.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		metadata.CallgenVersion,
		body,
	)
	return err
}
