// Package generator turns a natural-language intent into the function calls
// a hosted chat model proposes for it, given an API specification.
package generator

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ppiankov/callgen/internal/config"
	"github.com/ppiankov/callgen/internal/llm"
	"github.com/ppiankov/callgen/internal/prompt"
)

// Model is the chat model (Azure deployment) every request targets.
const Model = "gpt-4o"

// Result is the record returned for one intent.
type Result struct {
	ActualCalls any `json:"actual_calls"`
}

// Generator produces call records. It holds no mutable state and is safe for
// concurrent use.
type Generator struct {
	cfg        config.Config
	httpClient *http.Client
	apiVersion string
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient sets the transport used by every per-call client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// WithAPIVersion overrides llm.DefaultAPIVersion.
func WithAPIVersion(v string) Option {
	return func(g *Generator) { g.apiVersion = v }
}

// New validates cfg and returns a Generator that keeps it unchanged.
func New(cfg config.Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg, apiVersion: llm.DefaultAPIVersion}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the configuration the generator was built with.
func (g *Generator) Config() config.Config {
	return g.cfg
}

// SystemPrompt loads the configured specification and template and returns
// the substituted system prompt.
func (g *Generator) SystemPrompt() (string, error) {
	return BuildSystemPrompt(g.cfg.SwaggerPath, g.cfg.SystemPromptPath)
}

// BuildSystemPrompt reads both files in full and substitutes the
// specification into the template. File failures are *FileAccessError.
func BuildSystemPrompt(specPath, templatePath string) (string, error) {
	spec, err := prompt.ReadText(specPath)
	if err != nil {
		return "", &FileAccessError{Path: specPath, Err: err}
	}
	tmpl, err := prompt.ReadText(templatePath)
	if err != nil {
		return "", &FileAccessError{Path: templatePath, Err: err}
	}
	return prompt.Render(tmpl, spec), nil
}

// Request builds the chat request for intent with the given system prompt.
func (g *Generator) Request(system, intent string) llm.ChatRequest {
	temperature := g.cfg.Temperature
	topP := g.cfg.TopP
	return llm.ChatRequest{
		Model:       Model,
		Temperature: &temperature,
		TopP:        &topP,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: intent},
		},
		ResponseFormat: llm.JSONObject,
	}
}

// Generate runs one blocking round trip for intent. The first failure aborts
// the call; no partial result is returned.
func (g *Generator) Generate(ctx context.Context, intent string) (*Result, error) {
	system, err := g.SystemPrompt()
	if err != nil {
		return nil, err
	}

	client := &llm.Client{
		Endpoint:   g.cfg.Endpoint,
		APIKey:     g.cfg.APIKey,
		APIVersion: g.apiVersion,
		HTTPClient: g.httpClient,
	}

	resp, err := client.Complete(ctx, g.Request(system, intent))
	if err != nil {
		return nil, &RemoteCallError{Err: err}
	}

	content, err := resp.FirstContent()
	if err != nil {
		return nil, &ResponseDecodeError{Err: err}
	}

	var calls any
	if err := json.Unmarshal([]byte(content), &calls); err != nil {
		return nil, &ResponseDecodeError{Content: content, Err: err}
	}

	return &Result{ActualCalls: calls}, nil
}
