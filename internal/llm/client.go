package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIVersion is the Azure OpenAI data-plane API version sent with
// every request.
const DefaultAPIVersion = "2024-10-21"

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// maxSnippet bounds how much of a response body is quoted in an error.
const maxSnippet = 512

// ErrNoChoices is returned when a successful response carries no choices.
var ErrNoChoices = errors.New("no choices in response")

// Client is a minimal Azure OpenAI chat-completions client.
type Client struct {
	Endpoint   string       // e.g. https://my-resource.openai.azure.com
	APIKey     string       // sent as the api-key header
	APIVersion string       // defaults to DefaultAPIVersion
	HTTPClient *http.Client // defaults to http.DefaultClient
}

// NewClient returns a Client bound to endpoint and key using DefaultAPIVersion.
func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		APIVersion: DefaultAPIVersion,
		HTTPClient: httpClient,
	}
}

// ChatRequest is the body of a chat-completions call. Model doubles as the
// Azure deployment name in the request path.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat constrains the shape of the model output.
type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONObject asks the model for a single JSON object instead of free text.
var JSONObject = &ResponseFormat{Type: "json_object"}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Error *apiErrorBody `json:"error,omitempty"`
}

type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiErrorBody struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

// APIError is returned for non-2xx responses and for error payloads in a
// 2xx response.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = snippet(e.Body)
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s (%s): %s", e.StatusCode, http.StatusText(e.StatusCode), e.Code, msg)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), msg)
}

// FirstContent returns the message content of the first choice.
func (r *ChatResponse) FirstContent() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}

// CompletionsURL returns the deployment-scoped chat-completions URL.
func (c *Client) CompletionsURL(deployment string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if base == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q must be an absolute URL", c.Endpoint)
	}

	version := c.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/openai/deployments/" + deployment + "/chat/completions"
	q := u.Query()
	q.Set("api-version", version)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Complete sends a single chat-completions request and returns the decoded
// response. It never retries.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	endpoint, err := c.CompletionsURL(req.Model)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("api-key", c.APIKey)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var cr ChatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w (raw: %s)", err, snippet(string(body)))
	}

	if cr.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Type:       cr.Error.Type,
			Code:       codeString(cr.Error.Code),
			Message:    cr.Error.Message,
			Body:       string(body),
		}
	}

	return &cr, nil
}

// newAPIError extracts the error envelope from body when there is one.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}

	var envelope struct {
		Error *apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr.Type = envelope.Error.Type
		apiErr.Code = codeString(envelope.Error.Code)
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func codeString(code interface{}) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

// snippet trims body to maxSnippet runes for error messages.
func snippet(body string) string {
	body = strings.TrimSpace(body)
	r := []rune(body)
	if len(r) <= maxSnippet {
		return body
	}
	return string(r[:maxSnippet-1]) + "…"
}
