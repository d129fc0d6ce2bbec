// Package baseline saves eval reports and reports drift between runs.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ppiankov/callgen/internal/eval"
)

// Baseline represents a saved eval run
type Baseline struct {
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	RunID     string            `json:"run_id"`
	Dataset   string            `json:"dataset"`
	Results   []eval.CaseResult `json:"results"`
}

// DriftReport shows changes between baseline and current
type DriftReport struct {
	BaselineTime time.Time    `json:"baseline_time"`
	CurrentTime  time.Time    `json:"current_time"`
	New          []CaseDrift  `json:"new"`       // Cases not in the baseline
	Removed      []CaseDrift  `json:"removed"`   // Cases no longer in the dataset
	Fixed        []CaseDrift  `json:"fixed"`     // Better outcome now
	Regressed    []CaseDrift  `json:"regressed"` // Worse outcome now
	Changed      []CaseDrift  `json:"changed"`   // Same outcome, different calls
	Unchanged    []CaseDrift  `json:"unchanged"`
	Summary      DriftSummary `json:"summary"`
}

type CaseDrift struct {
	Case            string       `json:"case"`
	BaselineOutcome eval.Outcome `json:"baseline_outcome,omitempty"`
	CurrentOutcome  eval.Outcome `json:"current_outcome,omitempty"`
}

type DriftSummary struct {
	TotalBaseline int `json:"total_baseline"`
	TotalCurrent  int `json:"total_current"`
	New           int `json:"new"`
	Removed       int `json:"removed"`
	Fixed         int `json:"fixed"`
	Regressed     int `json:"regressed"`
	Changed       int `json:"changed"`
	Unchanged     int `json:"unchanged"`
}

// HasRegressions reports whether any case got worse.
func (r *DriftReport) HasRegressions() bool {
	return r.Summary.Regressed > 0
}

// ErrPartialRun is returned when saving a run that stopped before every case ran.
var ErrPartialRun = errors.New("run stopped early")

// SaveBaseline saves an eval report as a baseline
func SaveBaseline(report *eval.Report, dataset, filepath, version string) error {
	if report.Stopped {
		return fmt.Errorf("refusing to save baseline: %w (%d case(s) skipped)", ErrPartialRun, len(report.Skipped))
	}

	baseline := Baseline{
		Timestamp: report.FinishedAt,
		Version:   version,
		RunID:     report.RunID,
		Dataset:   dataset,
		Results:   report.Results,
	}
	if baseline.Timestamp.IsZero() {
		baseline.Timestamp = time.Now()
	}

	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}

	return nil
}

// LoadBaseline loads a saved baseline
func LoadBaseline(filepath string) (*Baseline, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}

	var baseline Baseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}

	return &baseline, nil
}

// CompareToBaseline compares current results to a baseline, matching cases by name.
// Cases skipped by a stopped run are left out of the drift.
func CompareToBaseline(baseline *Baseline, current *eval.Report) *DriftReport {
	report := &DriftReport{
		BaselineTime: baseline.Timestamp,
		CurrentTime:  current.FinishedAt,
		New:          make([]CaseDrift, 0),
		Removed:      make([]CaseDrift, 0),
		Fixed:        make([]CaseDrift, 0),
		Regressed:    make([]CaseDrift, 0),
		Changed:      make([]CaseDrift, 0),
		Unchanged:    make([]CaseDrift, 0),
	}

	baselineMap := make(map[string]eval.CaseResult, len(baseline.Results))
	for _, cr := range baseline.Results {
		baselineMap[cr.Name] = cr
	}
	currentNames := make(map[string]bool, len(current.Results)+len(current.Skipped))
	// Cases that never ran in a stopped run are not removed from the dataset.
	for _, name := range current.Skipped {
		currentNames[name] = true
	}

	for _, curr := range current.Results {
		currentNames[curr.Name] = true
		base, exists := baselineMap[curr.Name]
		if !exists {
			report.New = append(report.New, CaseDrift{Case: curr.Name, CurrentOutcome: curr.Outcome})
			continue
		}

		drift := CaseDrift{Case: curr.Name, BaselineOutcome: base.Outcome, CurrentOutcome: curr.Outcome}
		baseScore, currScore := outcomeScore(base.Outcome), outcomeScore(curr.Outcome)
		switch {
		case currScore > baseScore:
			report.Fixed = append(report.Fixed, drift)
		case currScore < baseScore:
			report.Regressed = append(report.Regressed, drift)
		case !sameCalls(base, curr):
			report.Changed = append(report.Changed, drift)
		default:
			report.Unchanged = append(report.Unchanged, drift)
		}
	}

	for _, base := range baseline.Results {
		if !currentNames[base.Name] {
			report.Removed = append(report.Removed, CaseDrift{Case: base.Name, BaselineOutcome: base.Outcome})
		}
	}
	sort.Slice(report.Removed, func(i, j int) bool { return report.Removed[i].Case < report.Removed[j].Case })

	report.Summary = DriftSummary{
		TotalBaseline: len(baseline.Results),
		TotalCurrent:  len(current.Results),
		New:           len(report.New),
		Removed:       len(report.Removed),
		Fixed:         len(report.Fixed),
		Regressed:     len(report.Regressed),
		Changed:       len(report.Changed),
		Unchanged:     len(report.Unchanged),
	}

	return report
}

// sameCalls compares the proposed calls of two results of the same outcome
func sameCalls(base, curr eval.CaseResult) bool {
	ok, err := eval.Match(base.Actual, curr.Actual)
	return err == nil && ok
}

// outcomeScore converts an outcome to a numeric score for comparison
func outcomeScore(o eval.Outcome) int {
	switch o {
	case eval.OutcomePass:
		return 3
	case eval.OutcomeFail:
		return 2
	case eval.OutcomeError:
		return 1
	default:
		return 0
	}
}
