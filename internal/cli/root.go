package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/ppiankov/callgen/internal/config"
	"github.com/ppiankov/callgen/internal/logger"
	"github.com/ppiankov/callgen/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via -ldflags "-X github.com/ppiankov/callgen/internal/cli.version=..."
var version = "0.1.0"

// app carries state shared by every subcommand of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	verbose bool
	log     *logger.Logger
}

// Execute builds the command tree and runs it against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: logger.Nop()}

	rootCmd := &cobra.Command{
		Use:   "callgen",
		Short: "Turn natural-language intents into API calls with a hosted chat model",
		Long: `callgen sends an API specification and a natural-language intent to an
Azure OpenAI chat deployment and returns the function calls the model proposes.

Commands:
  - generate: propose calls for one intent
  - prompt:   print the system prompt that would be sent (no network)
  - eval:     score proposed calls against a YAML dataset of expectations

Configuration (flags > environment > .env > config file):
  SWAGGER_PATH, SYSTEM_PROMPT_PATH, AZURE_INFERENCE_ENDPOINT,
  AZURE_INFERENCE_KEY, TEMPERATURE (0.2), TOP_P (0.1)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Disable default completion command
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.log.Sync()
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.callgen.yaml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment (ignored if missing)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	if err := config.BindFlags(pf, a.v); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newPromptCmd(a),
		newEvalCmd(a),
	)
	return rootCmd
}

// initConfig loads the dotenv file and the config file and builds the logger.
func (a *app) initConfig(stderr io.Writer) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("load env file %s: %w", a.envFile, err))
		}
	}

	if a.cfgFile != "" {
		// Use config file from the flag
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".callgen" (without extension)
			a.v.AddConfigPath(home)
		}
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".callgen")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return util.WithExitCode(util.ExitInvalidInput, fmt.Errorf("read config: %w", err))
		}
	}

	log, err := logger.New(a.verbose)
	if err != nil {
		return err
	}
	a.log = log
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug("using config file", "path", used)
	}
	return nil
}

// loadConfig resolves the full generator configuration.
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return config.Config{}, util.WithExitCode(util.ExitInvalidInput, err)
	}
	a.log.Debug("configuration loaded",
		"swagger_path", cfg.SwaggerPath,
		"system_prompt_path", cfg.SystemPromptPath,
		"endpoint", cfg.Endpoint,
		"api_key", cfg.APIKey,
		"temperature", cfg.Temperature,
		"top_p", cfg.TopP,
	)
	return cfg, nil
}
