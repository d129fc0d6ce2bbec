// Package output renders eval reports for code-scanning tools.
package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ppiankov/callgen/internal/eval"
)

// SARIF represents the SARIF 2.1.0 format for static analysis results
// Spec: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html
type SARIF struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	InformationUri  string `json:"informationUri"`
	SemanticVersion string `json:"semanticVersion"`
	Rules           []Rule `json:"rules"`
}

type Rule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription MessageString          `json:"shortDescription"`
	FullDescription  MessageString          `json:"fullDescription"`
	Help             MessageString          `json:"help"`
	DefaultLevel     string                 `json:"defaultConfiguration.level"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
}

type Result struct {
	RuleID     string                 `json:"ruleId"`
	Level      string                 `json:"level"`
	Message    MessageString          `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region,omitempty"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine int `json:"startLine,omitempty"`
}

type MessageString struct {
	Text string `json:"text"`
}

const (
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"

	RuleCallMismatch   = "call-mismatch"
	RuleGenerationFail = "generation-error"
)

// GenerateSARIFFromReport converts every non-passing eval case to a SARIF
// result located at its case in the dataset file.
func GenerateSARIFFromReport(report *eval.Report, datasetPath, version string) ([]byte, error) {
	sarif := SARIF{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:            "callgen",
						Version:         version,
						InformationUri:  "https://github.com/ppiankov/callgen",
						SemanticVersion: version,
						Rules:           generateEvalRules(),
					},
				},
				Results: convertReportToResults(report, datasetPath),
			},
		},
	}

	return json.MarshalIndent(sarif, "", "  ")
}

func generateEvalRules() []Rule {
	return []Rule{
		{
			ID:   RuleCallMismatch,
			Name: "Proposed Calls Differ From Expectation",
			ShortDescription: MessageString{
				Text: "The model proposed calls that differ from the expected calls",
			},
			FullDescription: MessageString{
				Text: "The calls generated for this intent are not equal to the expected_calls pinned in the dataset.",
			},
			Help: MessageString{
				Text: "Compare the diff in the result properties. Update the prompt template or the expectation.",
			},
			DefaultLevel: "warning",
		},
		{
			ID:   RuleGenerationFail,
			Name: "Generation Failed",
			ShortDescription: MessageString{
				Text: "No calls could be generated for this intent",
			},
			FullDescription: MessageString{
				Text: "Reading the specification or template, calling the chat deployment, or decoding its answer failed.",
			},
			Help: MessageString{
				Text: "Check error_kind: file_access points at SWAGGER_PATH or SYSTEM_PROMPT_PATH, remote_call at the endpoint and key, response_decode at the model output.",
			},
			DefaultLevel: "error",
		},
	}
}

func convertReportToResults(report *eval.Report, datasetPath string) []Result {
	results := make([]Result, 0)
	uri := filepath.ToSlash(datasetPath)

	for _, cr := range report.Results {
		if cr.Outcome == eval.OutcomePass {
			continue
		}

		ruleID := RuleCallMismatch
		level := "warning"
		message := fmt.Sprintf("Case %s: proposed calls differ from expected_calls", cr.Name)
		if cr.Outcome == eval.OutcomeError {
			ruleID = RuleGenerationFail
			level = "error"
			message = fmt.Sprintf("Case %s: %s", cr.Name, cr.Error)
		}

		result := Result{
			RuleID: ruleID,
			Level:  level,
			Message: MessageString{
				Text: message,
			},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: uri},
						Region:           Region{StartLine: cr.Line},
					},
				},
			},
			Properties: map[string]interface{}{
				"run_id":      report.RunID,
				"case":        cr.Name,
				"intent":      cr.Intent,
				"outcome":     string(cr.Outcome),
				"duration_ms": cr.DurationMS,
			},
		}
		if cr.Diff != "" {
			result.Properties["diff"] = cr.Diff
		}
		if cr.ErrorKind != "" {
			result.Properties["error_kind"] = cr.ErrorKind
		}

		results = append(results, result)
	}

	return results
}
