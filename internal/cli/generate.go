package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/callgen/internal/export"
	"github.com/ppiankov/callgen/internal/generator"
	"github.com/ppiankov/callgen/internal/result"
	"github.com/ppiankov/callgen/internal/util"
	"github.com/spf13/cobra"
)

// GenerateCommandConfig holds the flags of the generate command.
type GenerateCommandConfig struct {
	Format     string
	OutputFile string
	Timeout    time.Duration
	NoSpinner  bool
}

func newGenerateCmd(a *app) *cobra.Command {
	cfg := &GenerateCommandConfig{}

	cmd := &cobra.Command{
		Use:   "generate INTENT...",
		Short: "Propose API calls for a natural-language intent",
		Long: `Propose API calls for a natural-language intent.

The specification file is substituted into the prompt template at the
##swagger_spec## token and sent, with the intent as the user message, to the
configured Azure OpenAI deployment. The model's JSON answer is returned as
{"actual_calls": ...}.

Examples:
  # Using environment variables
  export SWAGGER_PATH=petstore.yaml SYSTEM_PROMPT_PATH=prompt.txt
  export AZURE_INFERENCE_ENDPOINT=https://my-res.openai.azure.com AZURE_INFERENCE_KEY=...
  callgen generate "add a dog named Rex"

  # Raw JSON record, saved to a file as well
  callgen generate --format json --output rex.json "add a dog named Rex"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, cfg, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&cfg.Format, "format", "human", "Output format: human|json")
	cmd.Flags().StringVar(&cfg.OutputFile, "output", "", "Also save the record to a file (format auto-detected: .json, .md, .txt)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 0, "Abort the request after this long (0 = no limit)")
	cmd.Flags().BoolVar(&cfg.NoSpinner, "no-spinner", false, "Never show the progress spinner")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, cfg *GenerateCommandConfig, intent string) error {
	if cfg.Format != "human" && cfg.Format != "json" {
		return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("--format must be 'human' or 'json'"))
	}
	if strings.TrimSpace(intent) == "" {
		return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("intent must not be empty"))
	}

	genCfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	gen, err := generator.New(genCfg)
	if err != nil {
		return util.WithExitCode(util.ExitInvalidInput, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	a.log.Debug("calling chat deployment", "endpoint", genCfg.Endpoint, "model", generator.Model)
	started := time.Now()

	var res *generator.Result
	if !cfg.NoSpinner && isInteractive(cmd.ErrOrStderr()) {
		res, err = runWithSpinner(ctx, cmd.ErrOrStderr(), "Asking "+generator.Model+"...",
			func(ctx context.Context) (*generator.Result, error) {
				return gen.Generate(ctx, intent)
			})
	} else {
		res, err = gen.Generate(ctx, intent)
	}
	if err != nil {
		a.log.Debug("generation failed", "kind", generator.Kind(err), "elapsed", time.Since(started))
		return fmt.Errorf("generate: %w", err)
	}
	a.log.Debug("generation finished", "elapsed", time.Since(started))

	out := cmd.OutOrStdout()
	if cfg.Format == "json" {
		body, err := result.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, body)
	} else {
		result.RenderCallsHuman(out, intent, res)
	}

	if cfg.OutputFile != "" {
		if err := exportToFile(res, intent, genCfg.Endpoint, cfg.OutputFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[callgen] Record saved to: %s\n", cfg.OutputFile)
	}
	return nil
}

// exportToFile writes res to outputPath in the format implied by its extension.
func exportToFile(res *generator.Result, intent, endpoint, outputPath string) error {
	exporter := export.Exporter{
		Format: export.DetectFormat(outputPath),
		Metadata: export.ExportMetadata{
			GeneratedAt:    time.Now().UTC(),
			CallgenVersion: version,
			Model:          generator.Model,
			Endpoint:       endpoint,
			Intent:         intent,
		},
	}

	var payload interface{} = res
	if exporter.Format == export.FormatText {
		var buf bytes.Buffer
		result.RenderCallsHuman(&buf, intent, res)
		payload = buf.String()
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	return writeAndClose(file, func(w io.Writer) error {
		return exporter.Export(payload, w)
	})
}

// writeAndClose runs write against wc and always closes it. A close failure
// is reported when the write itself succeeded.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	if err := write(wc); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to export: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}
