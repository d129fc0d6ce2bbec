package baseline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/callgen/internal/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadBaseline_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	report := &eval.Report{
		RunID:      "run-1",
		FinishedAt: finished,
		Results: []eval.CaseResult{
			makeResult("list-pets", eval.OutcomePass, "listPets"),
		},
	}

	err := SaveBaseline(report, "cases.yaml", path, "v1.2.3")
	require.NoError(t, err)

	loaded, err := LoadBaseline(path)
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", loaded.Version)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "cases.yaml", loaded.Dataset)
	assert.True(t, finished.Equal(loaded.Timestamp))
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, "list-pets", loaded.Results[0].Name)
	assert.Equal(t, eval.OutcomePass, loaded.Results[0].Outcome)
}

func TestSaveBaseline_ZeroFinishTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	start := time.Now()

	require.NoError(t, SaveBaseline(&eval.Report{}, "", path, "dev"))

	loaded, err := LoadBaseline(path)
	require.NoError(t, err)
	assert.False(t, loaded.Timestamp.Before(start.Truncate(time.Second)))
}

func TestSaveBaseline_RefusesStoppedRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	report := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomeFail, "x")},
		Stopped: true,
		Skipped: []string{"b"},
	}

	err := SaveBaseline(report, "cases.yaml", path, "dev")
	assert.ErrorIs(t, err, ErrPartialRun)
	assert.NoFileExists(t, path)
}

func TestLoadBaseline_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadBaseline(path)
	assert.Error(t, err)
}

func TestLoadBaseline_CorruptedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	err := os.WriteFile(path, []byte("{invalid"), 0644)
	require.NoError(t, err)

	_, err = LoadBaseline(path)
	assert.Error(t, err)
}

func TestCompareToBaseline_NoDrift(t *testing.T) {
	baseline := &Baseline{
		Timestamp: time.Now(),
		Results:   []eval.CaseResult{makeResult("a", eval.OutcomePass, "listPets")},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomePass, "listPets")},
	}

	report := CompareToBaseline(baseline, current)
	require.NotNil(t, report)
	assert.Len(t, report.Unchanged, 1)
	assert.Len(t, report.Fixed, 0)
	assert.Len(t, report.Regressed, 0)
	assert.Len(t, report.New, 0)
	assert.Len(t, report.Removed, 0)
	assert.Equal(t, 1, report.Summary.TotalBaseline)
	assert.Equal(t, 1, report.Summary.TotalCurrent)
	assert.Equal(t, 1, report.Summary.Unchanged)
	assert.False(t, report.HasRegressions())
}

func TestCompareToBaseline_Fixed(t *testing.T) {
	baseline := &Baseline{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomeError, "")},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomeFail, "deletePet")},
	}

	report := CompareToBaseline(baseline, current)
	assert.Len(t, report.Fixed, 1)
	assert.Equal(t, CaseDrift{Case: "a", BaselineOutcome: eval.OutcomeError, CurrentOutcome: eval.OutcomeFail}, report.Fixed[0])
	assert.Equal(t, 1, report.Summary.Fixed)
}

func TestCompareToBaseline_Regressed(t *testing.T) {
	baseline := &Baseline{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomePass, "addPet")},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomeFail, "deletePet")},
	}

	report := CompareToBaseline(baseline, current)
	assert.Len(t, report.Regressed, 1)
	assert.Len(t, report.Fixed, 0)
	assert.Equal(t, 1, report.Summary.Regressed)
	assert.True(t, report.HasRegressions())
}

func TestCompareToBaseline_ChangedCalls(t *testing.T) {
	// Both pass because neither case pins expectations, but the calls moved.
	baseline := &Baseline{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomePass, "findPets")},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomePass, "listPets")},
	}

	report := CompareToBaseline(baseline, current)
	assert.Len(t, report.Changed, 1)
	assert.Len(t, report.Unchanged, 0)
}

func TestCompareToBaseline_NewAndRemoved(t *testing.T) {
	baseline := &Baseline{
		Results: []eval.CaseResult{
			makeResult("old-b", eval.OutcomePass, "x"),
			makeResult("old-a", eval.OutcomeFail, "y"),
		},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("new", eval.OutcomePass, "z")},
	}

	report := CompareToBaseline(baseline, current)
	require.Len(t, report.New, 1)
	assert.Equal(t, "new", report.New[0].Case)
	require.Len(t, report.Removed, 2)
	assert.Equal(t, "old-a", report.Removed[0].Case)
	assert.Equal(t, "old-b", report.Removed[1].Case)
	assert.Equal(t, 2, report.Summary.TotalBaseline)
	assert.Equal(t, 1, report.Summary.TotalCurrent)
}

func makeResult(name string, outcome eval.Outcome, call string) eval.CaseResult {
	cr := eval.CaseResult{Name: name, Intent: "intent for " + name, Outcome: outcome}
	if call != "" {
		cr.Actual = map[string]any{"calls": []any{map[string]any{"name": call}}}
	}
	return cr
}

func TestCompareToBaseline_SkippedCasesAreNotRemoved(t *testing.T) {
	baseline := &Baseline{
		Results: []eval.CaseResult{
			makeResult("a", eval.OutcomePass, "addPet"),
			makeResult("b", eval.OutcomePass, "findPets"),
		},
	}
	current := &eval.Report{
		Results: []eval.CaseResult{makeResult("a", eval.OutcomeFail, "deletePet")},
		Stopped: true,
		Skipped: []string{"b"},
	}

	report := CompareToBaseline(baseline, current)
	assert.Len(t, report.Regressed, 1)
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Unchanged)
}
