package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/callgen/internal/audit"
	"github.com/ppiankov/callgen/internal/baseline"
	"github.com/ppiankov/callgen/internal/eval"
	"github.com/ppiankov/callgen/internal/generator"
	"github.com/ppiankov/callgen/internal/metrics"
	"github.com/ppiankov/callgen/internal/output"
	"github.com/ppiankov/callgen/internal/result"
	"github.com/ppiankov/callgen/internal/util"
	"github.com/spf13/cobra"
)

// EvalCommandConfig holds the flags of the eval command.
type EvalCommandConfig struct {
	Dataset     string
	ResultsFile string
	MetricsFile string
	FailFast    bool
	Format      string

	// Baseline comparison
	Baseline         string
	SaveBaseline     string
	FailOnRegression bool
}

func newEvalCmd(a *app) *cobra.Command {
	cfg := &EvalCommandConfig{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score proposed calls against a dataset of expectations",
		Long: `Run every case of a YAML dataset through the generator and compare the
proposed calls with the expected ones.

Dataset format:
  cases:
    - name: add-pet
      intent: add a dog named Rex
      expected_calls:
        - name: addPet
          arguments: {name: Rex}

Cases without expected_calls pass whenever generation succeeds.

Exit codes:
  0 - every case passed
  1 - at least one case failed or errored
  2 - invalid dataset or configuration
  3 - runtime error

Examples:
  callgen eval --dataset cases.yaml
  callgen eval --dataset cases.yaml --results runs.jsonl --metrics-file callgen.prom

  # Save a baseline, then compare later runs against it
  callgen eval --dataset cases.yaml --save-baseline baseline.json
  callgen eval --dataset cases.yaml --baseline baseline.json --fail-on-regression

  # SARIF for code-scanning upload
  callgen eval --dataset cases.yaml --format sarif > callgen.sarif`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEval(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Dataset, "dataset", "", "YAML dataset of cases (required)")
	cmd.Flags().StringVar(&cfg.ResultsFile, "results", "", "Append one JSON line per case to this file")
	cmd.Flags().StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus text metrics to this file after the run")
	cmd.Flags().BoolVar(&cfg.FailFast, "fail-fast", false, "Stop at the first case that does not pass")
	cmd.Flags().StringVar(&cfg.Format, "format", "human", "Output format: human|json|sarif")
	cmd.Flags().StringVar(&cfg.Baseline, "baseline", "", "Compare the run against a saved baseline")
	cmd.Flags().StringVar(&cfg.SaveBaseline, "save-baseline", "", "Save the run as a baseline to this file")
	cmd.Flags().BoolVar(&cfg.FailOnRegression, "fail-on-regression", false, "Exit 1 when any case regressed against --baseline")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func (a *app) runEval(cmd *cobra.Command, cfg *EvalCommandConfig) error {
	switch cfg.Format {
	case "human", "json", "sarif":
	default:
		return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("--format must be 'human', 'json' or 'sarif'"))
	}
	if cfg.FailOnRegression && cfg.Baseline == "" {
		return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("--fail-on-regression requires --baseline"))
	}

	var base *baseline.Baseline
	if cfg.Baseline != "" {
		var err error
		base, err = baseline.LoadBaseline(cfg.Baseline)
		if err != nil {
			return util.WithExitCode(util.ExitInvalidInput, err)
		}
	}

	ds, err := eval.LoadDataset(cfg.Dataset)
	if err != nil {
		return util.WithExitCode(util.ExitInvalidInput, err)
	}

	genCfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	gen, err := generator.New(genCfg)
	if err != nil {
		return util.WithExitCode(util.ExitInvalidInput, err)
	}

	runner := &eval.Runner{
		Generator: gen,
		Metrics:   metrics.NewRecorder(),
		Logger:    a.log,
		FailFast:  cfg.FailFast,
	}
	if cfg.ResultsFile != "" {
		runner.Results, err = audit.NewResultLog(cfg.ResultsFile)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := runner.Run(ctx, ds)
	if report == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	switch cfg.Format {
	case "json":
		body, err := result.PrettyJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, body)
	case "sarif":
		body, err := output.GenerateSARIFFromReport(report, cfg.Dataset, version)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(body))
	default:
		result.RenderReportHuman(out, report)
	}

	var drift *baseline.DriftReport
	if base != nil {
		drift = baseline.CompareToBaseline(base, report)
		// Keep machine-readable stdout clean.
		driftOut := out
		if cfg.Format != "human" {
			driftOut = cmd.ErrOrStderr()
		}
		result.RenderDriftHuman(driftOut, drift)
	}

	switch {
	case cfg.SaveBaseline == "" || runErr != nil:
	case report.Stopped:
		fmt.Fprintf(cmd.ErrOrStderr(), "[callgen] Run stopped before %d case(s); baseline not saved\n", len(report.Skipped))
	default:
		if err := baseline.SaveBaseline(report, cfg.Dataset, cfg.SaveBaseline, version); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[callgen] Baseline saved to: %s\n", cfg.SaveBaseline)
	}

	if cfg.MetricsFile != "" {
		if err := runner.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[callgen] Metrics written to: %s\n", cfg.MetricsFile)
	}

	if runErr != nil {
		return runErr
	}
	if cfg.FailOnRegression && drift != nil && drift.HasRegressions() {
		return util.WithExitCode(util.ExitPolicyFail,
			fmt.Errorf("%d case(s) regressed against baseline %s", drift.Summary.Regressed, cfg.Baseline))
	}
	if !report.OK() {
		s := report.Summary
		return util.WithExitCode(util.ExitPolicyFail,
			fmt.Errorf("%d of %d cases did not pass", s.Failed+s.Errored, s.Total))
	}
	return nil
}
