// Package eval scores generated calls against a dataset of expectations.
package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/callgen/internal/audit"
	"github.com/ppiankov/callgen/internal/generator"
	"github.com/ppiankov/callgen/internal/logger"
	"github.com/ppiankov/callgen/internal/metrics"
)

// CallGenerator is satisfied by *generator.Generator.
type CallGenerator interface {
	Generate(ctx context.Context, intent string) (*generator.Result, error)
}

// Outcome of a single case.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"  // generated calls differ from the expectation
	OutcomeError Outcome = "error" // generation failed
)

// CaseResult is the evaluation of one case.
type CaseResult struct {
	Name       string        `json:"name"`
	Intent     string        `json:"intent"`
	Line       int           `json:"line,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Expected   any           `json:"expected_calls,omitempty"`
	Actual     any           `json:"actual_calls,omitempty"`
	Diff       string        `json:"diff,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Summary counts outcomes.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// Report is the result of one run over a dataset.
type Report struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []CaseResult `json:"results"`
	Summary    Summary      `json:"summary"`

	// Stopped is set when the run ended before every case was evaluated;
	// Skipped names the cases that never ran.
	Stopped bool     `json:"stopped,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

func (r *Report) stop(remaining []Case) {
	if len(remaining) == 0 {
		return
	}
	r.Stopped = true
	for _, c := range remaining {
		r.Skipped = append(r.Skipped, c.Name)
	}
}

// OK reports whether every evaluated case passed.
func (r *Report) OK() bool {
	return r.Summary.Total > 0 && r.Summary.Passed == r.Summary.Total
}

func (r *Report) add(cr CaseResult) {
	r.Results = append(r.Results, cr)
	r.Summary.Total++
	switch cr.Outcome {
	case OutcomePass:
		r.Summary.Passed++
	case OutcomeFail:
		r.Summary.Failed++
	case OutcomeError:
		r.Summary.Errored++
	}
}

// Runner evaluates datasets sequentially. Metrics, Results and Logger are
// optional.
type Runner struct {
	Generator CallGenerator
	Metrics   *metrics.Recorder
	Results   *audit.ResultLog
	Logger    *logger.Logger
	FailFast  bool

	// Now and NewRunID are replaced in tests.
	Now      func() time.Time
	NewRunID func() string
}

// Run evaluates every case in ds in order. On cancellation, or when the
// results log cannot be written, it returns the partial report together
// with the error.
func (r *Runner) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	if r.Generator == nil {
		return nil, fmt.Errorf("eval runner has no generator")
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	newRunID := r.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	log := r.Logger
	if log == nil {
		log = logger.Nop()
	}

	report := &Report{RunID: newRunID(), StartedAt: now()}
	log = log.With("run_id", report.RunID)
	log.Info("eval run started", "cases", len(ds.Cases))

	finish := func(err error) (*Report, error) {
		report.FinishedAt = now()
		if r.Metrics != nil {
			r.Metrics.MarkRunFinished(report.FinishedAt)
		}
		log.Info("eval run finished",
			"total", report.Summary.Total,
			"passed", report.Summary.Passed,
			"failed", report.Summary.Failed,
			"errored", report.Summary.Errored,
		)
		return report, err
	}

	for i, c := range ds.Cases {
		if err := ctx.Err(); err != nil {
			report.stop(ds.Cases[i:])
			return finish(err)
		}

		started := now()
		cr := r.evaluate(ctx, c)
		cr.Duration = now().Sub(started)
		cr.DurationMS = cr.Duration.Milliseconds()
		report.add(cr)

		log.Debug("case evaluated", "case", cr.Name, "outcome", cr.Outcome, "duration_ms", cr.DurationMS)

		if r.Metrics != nil {
			r.Metrics.ObserveCase(string(cr.Outcome), cr.Duration)
		}
		if r.Results != nil {
			if err := r.Results.Append(toRecord(report.RunID, cr, started)); err != nil {
				report.stop(ds.Cases[i+1:])
				return finish(fmt.Errorf("append results: %w", err))
			}
		}

		if r.FailFast && cr.Outcome != OutcomePass {
			log.Warn("stopping at first non-passing case", "case", cr.Name)
			report.stop(ds.Cases[i+1:])
			break
		}
	}

	return finish(nil)
}

func (r *Runner) evaluate(ctx context.Context, c Case) CaseResult {
	cr := CaseResult{Name: c.Name, Intent: c.Intent, Line: c.Line, Expected: c.ExpectedCalls}

	res, err := r.Generator.Generate(ctx, c.Intent)
	if err != nil {
		cr.Outcome = OutcomeError
		cr.ErrorKind = generator.Kind(err)
		cr.Error = err.Error()
		return cr
	}

	actual, err := Normalize(res.ActualCalls)
	if err != nil {
		cr.Outcome = OutcomeError
		cr.ErrorKind = generator.KindOther
		cr.Error = err.Error()
		return cr
	}
	cr.Actual = actual

	if !c.HasExpectation() {
		cr.Outcome = OutcomePass
		return cr
	}

	ok, err := Match(c.ExpectedCalls, actual)
	if err != nil {
		cr.Outcome = OutcomeError
		cr.ErrorKind = generator.KindOther
		cr.Error = err.Error()
		return cr
	}
	if ok {
		cr.Outcome = OutcomePass
		return cr
	}

	cr.Outcome = OutcomeFail
	if diff, err := Diff(c.ExpectedCalls, actual); err == nil {
		cr.Diff = diff
	}
	return cr
}

func toRecord(runID string, cr CaseResult, at time.Time) audit.Record {
	return audit.Record{
		RunID:      runID,
		Case:       cr.Name,
		Intent:     cr.Intent,
		Outcome:    string(cr.Outcome),
		ErrorKind:  cr.ErrorKind,
		Error:      cr.Error,
		Expected:   cr.Expected,
		Actual:     cr.Actual,
		DurationMS: cr.DurationMS,
		At:         at.UTC(),
	}
}
