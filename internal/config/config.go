package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Recognized configuration keys. No other keys are consulted.
const (
	KeySwaggerPath      = "SWAGGER_PATH"
	KeySystemPromptPath = "SYSTEM_PROMPT_PATH"
	KeyEndpoint         = "AZURE_INFERENCE_ENDPOINT"
	KeyAPIKey           = "AZURE_INFERENCE_KEY"
	KeyTemperature      = "TEMPERATURE"
	KeyTopP             = "TOP_P"
)

const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.1
)

var (
	// ErrMissingKey is returned when a required key is absent or blank.
	ErrMissingKey = errors.New("missing required configuration key")

	// ErrInvalidValue is returned when a numeric key cannot be parsed.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Keys lists every recognized key in a stable order.
var Keys = []string{
	KeySwaggerPath,
	KeySystemPromptPath,
	KeyEndpoint,
	KeyAPIKey,
	KeyTemperature,
	KeyTopP,
}

// Config holds the settings for a call generator.
type Config struct {
	SwaggerPath      string  // path to the API specification text
	SystemPromptPath string  // path to the prompt template
	Endpoint         string  // e.g. https://my-resource.openai.azure.com
	APIKey           string  // sent as the api-key header
	Temperature      float64 // sampling temperature
	TopP             float64 // nucleus-sampling probability
}

// FromMap builds a Config from a raw key/value bundle. Numeric values are
// parsed from their string form and defaults are applied for absent ones.
func FromMap(values map[string]string) (Config, error) {
	cfg := Config{
		SwaggerPath:      strings.TrimSpace(values[KeySwaggerPath]),
		SystemPromptPath: strings.TrimSpace(values[KeySystemPromptPath]),
		Endpoint:         strings.TrimSpace(values[KeyEndpoint]),
		APIKey:           strings.TrimSpace(values[KeyAPIKey]),
	}

	var err error
	if cfg.Temperature, err = parseFloat(values, KeyTemperature, DefaultTemperature); err != nil {
		return Config{}, err
	}
	if cfg.TopP, err = parseFloat(values, KeyTopP, DefaultTopP); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first required field that is empty.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeySwaggerPath, c.SwaggerPath},
		{KeySystemPromptPath, c.SystemPromptPath},
		{KeyEndpoint, c.Endpoint},
		{KeyAPIKey, c.APIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, r.key)
		}
	}
	return nil
}

// Load reads the recognized keys from v and builds a Config. Keys are looked
// up case-insensitively, so environment variables, config file entries and
// bound flags all resolve to the same names.
func Load(v *viper.Viper) (Config, error) {
	values := make(map[string]string, len(Keys))
	for _, key := range Keys {
		if !v.IsSet(key) {
			continue
		}
		values[key] = v.GetString(key)
	}
	return FromMap(values)
}

// BindFlags registers one flag per recognized key on fs and binds them to v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("swagger-path", "", "path to the API specification file ($"+KeySwaggerPath+")")
	fs.String("system-prompt-path", "", "path to the prompt template file ($"+KeySystemPromptPath+")")
	fs.String("endpoint", "", "Azure OpenAI endpoint URL ($"+KeyEndpoint+")")
	fs.String("api-key", "", "Azure OpenAI API key ($"+KeyAPIKey+")")
	fs.String("temperature", "", "sampling temperature, default 0.2 ($"+KeyTemperature+")")
	fs.String("top-p", "", "nucleus-sampling probability, default 0.1 ($"+KeyTopP+")")

	bindings := map[string]string{
		KeySwaggerPath:      "swagger-path",
		KeySystemPromptPath: "system-prompt-path",
		KeyEndpoint:         "endpoint",
		KeyAPIKey:           "api-key",
		KeyTemperature:      "temperature",
		KeyTopP:             "top-p",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
		if err := v.BindEnv(key, key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func parseFloat(values map[string]string, key string, def float64) (float64, error) {
	raw, ok := values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return f, nil
}
