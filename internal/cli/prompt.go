package cli

import (
	"fmt"
	"strings"

	"github.com/ppiankov/callgen/internal/config"
	"github.com/ppiankov/callgen/internal/generator"
	"github.com/ppiankov/callgen/internal/util"
	"github.com/spf13/cobra"
)

func newPromptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt that would be sent",
		Long: `Print the system prompt that would be sent to the model.

Only SWAGGER_PATH and SYSTEM_PROMPT_PATH are needed; no request is made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath := strings.TrimSpace(a.v.GetString(config.KeySwaggerPath))
			templatePath := strings.TrimSpace(a.v.GetString(config.KeySystemPromptPath))
			if specPath == "" {
				return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("%w: %s", config.ErrMissingKey, config.KeySwaggerPath))
			}
			if templatePath == "" {
				return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("%w: %s", config.ErrMissingKey, config.KeySystemPromptPath))
			}

			system, err := generator.BuildSystemPrompt(specPath, templatePath)
			if err != nil {
				return err
			}
			a.log.Debug("system prompt built", "bytes", len(system))
			fmt.Fprint(cmd.OutOrStdout(), system)
			if !strings.HasSuffix(system, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}
