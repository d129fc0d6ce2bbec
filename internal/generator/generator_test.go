package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ppiankov/callgen/internal/config"
	"github.com/ppiankov/callgen/internal/llm"
	"github.com/ppiankov/callgen/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint records every chat request and answers with content.
type fakeEndpoint struct {
	mu       sync.Mutex
	requests []llm.ChatRequest
	versions []string
	status   int
	content  string
	noChoice bool
}

func (f *fakeEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var req llm.ChatRequest
	_ = json.Unmarshal(raw, &req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.versions = append(f.versions, r.URL.Query().Get("api-version"))
	f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":"RateLimit","message":"throttled"}}`))
		return
	}
	if f.noChoice {
		_, _ = w.Write([]byte(`{"choices":[]}`))
		return
	}
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": f.content}},
		},
	})
	_, _ = w.Write(body)
}

func (f *fakeEndpoint) last(t *testing.T) llm.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	endpoint *fakeEndpoint
	server   *httptest.Server
	values   map[string]string
}

func newFixture(t *testing.T, spec, tmpl string) *fixture {
	t.Helper()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "swagger.json")
	tmplPath := filepath.Join(dir, "system_prompt.txt")
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0644))
	require.NoError(t, os.WriteFile(tmplPath, []byte(tmpl), 0644))

	ep := &fakeEndpoint{content: `{"foo": "bar"}`}
	srv := httptest.NewServer(ep)
	t.Cleanup(srv.Close)

	return &fixture{
		endpoint: ep,
		server:   srv,
		values: map[string]string{
			config.KeySwaggerPath:      specPath,
			config.KeySystemPromptPath: tmplPath,
			config.KeyEndpoint:         srv.URL,
			config.KeyAPIKey:           "test-key",
		},
	}
}

func (f *fixture) generator(t *testing.T) *Generator {
	t.Helper()
	cfg, err := config.FromMap(f.values)
	require.NoError(t, err)
	g, err := New(cfg, WithHTTPClient(f.server.Client()))
	require.NoError(t, err)
	return g
}

func TestGenerate_SubstitutesSpec(t *testing.T) {
	f := newFixture(t, "S", "before "+prompt.SpecToken+" after")
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "list pets")
	require.NoError(t, err)

	req := f.endpoint.last(t)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "before S after", req.Messages[0].Content)
	assert.NotContains(t, req.Messages[0].Content, prompt.SpecToken)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "list pets", req.Messages[1].Content)
}

func TestGenerate_TemplateWithoutToken(t *testing.T) {
	tmpl := "You are a planner.\nReturn JSON."
	f := newFixture(t, "unused spec", tmpl)
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, tmpl, f.endpoint.last(t).Messages[0].Content)
}

func TestGenerate_RequestShape(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)

	req := f.endpoint.last(t)
	assert.Equal(t, Model, req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)
	require.NotNil(t, req.TopP)
	assert.Equal(t, 0.1, *req.TopP)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
}

func TestGenerate_ConfiguredSampling(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	f.values[config.KeyTemperature] = "0.7"
	f.values[config.KeyTopP] = "0.5"
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)

	req := f.endpoint.last(t)
	assert.Equal(t, 0.7, *req.Temperature)
	assert.Equal(t, 0.5, *req.TopP)
}

func TestGenerate_ReturnsActualCalls(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)

	res, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, &Result{ActualCalls: map[string]any{"foo": "bar"}}, res)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actual_calls": {"foo": "bar"}}`, string(out))
}

func TestGenerate_ArrayPassesThrough(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	f.endpoint.content = `[{"name":"getPet","arguments":{"id":1}}]`
	g := f.generator(t)

	res, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)
	calls, ok := res.ActualCalls.([]any)
	require.True(t, ok)
	assert.Len(t, calls, 1)
}

func TestGenerate_ResponseDecodeError(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	f.endpoint.content = "not json"
	g := f.generator(t)

	res, err := g.Generate(context.Background(), "x")
	assert.Nil(t, res)

	var decodeErr *ResponseDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "not json", decodeErr.Content)
	assert.Equal(t, KindResponseDecode, Kind(err))
}

func TestGenerate_NoChoicesIsDecodeError(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	f.endpoint.noChoice = true
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	var decodeErr *ResponseDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, llm.ErrNoChoices)
}

func TestGenerate_RemoteCallError(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	f.endpoint.status = http.StatusTooManyRequests
	g := f.generator(t)

	res, err := g.Generate(context.Background(), "x")
	assert.Nil(t, res)

	var remoteErr *RemoteCallError
	require.ErrorAs(t, err, &remoteErr)

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr, "cause must pass through unmodified")
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RateLimit", apiErr.Code)
	assert.Equal(t, KindRemoteCall, Kind(err))
}

func TestGenerate_TransportErrorIsRemoteCallError(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)
	f.server.Close()

	_, err := g.Generate(context.Background(), "x")
	var remoteErr *RemoteCallError
	assert.ErrorAs(t, err, &remoteErr)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "x")
	var remoteErr *RemoteCallError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGenerate_MissingSpecFile(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	missing := filepath.Join(t.TempDir(), "gone.json")
	f.values[config.KeySwaggerPath] = missing
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	var fileErr *FileAccessError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, missing, fileErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, f.endpoint.requests, "no request may be sent when a file fails")
}

func TestGenerate_MissingTemplateFile(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	missing := filepath.Join(t.TempDir(), "gone.txt")
	f.values[config.KeySystemPromptPath] = missing
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	var fileErr *FileAccessError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, missing, fileErr.Path)
	assert.Equal(t, KindFileAccess, Kind(err))
}

func TestGenerate_BinaryTemplate(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	require.NoError(t, os.WriteFile(f.values[config.KeySystemPromptPath], []byte{0xc3, 0x28}, 0644))
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	var fileErr *FileAccessError
	require.ErrorAs(t, err, &fileErr)
	assert.ErrorIs(t, err, prompt.ErrNotText)
}

func TestGenerate_SequentialIntentsAreIndependent(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "first intent")
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "second intent")
	require.NoError(t, err)

	require.Len(t, f.endpoint.requests, 2)
	first, second := f.endpoint.requests[0], f.endpoint.requests[1]
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "first intent", first.Messages[1].Content)
	assert.Equal(t, "second intent", second.Messages[1].Content)
	assert.NotContains(t, second.Messages[0].Content, "first intent")
}

func TestGenerate_RereadsFilesPerCall(t *testing.T) {
	f := newFixture(t, "v1", prompt.SpecToken)
	g := f.generator(t)

	_, err := g.Generate(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.values[config.KeySwaggerPath], []byte("v2"), 0644))
	_, err = g.Generate(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, "v1", f.endpoint.requests[0].Messages[0].Content)
	assert.Equal(t, "v2", f.endpoint.requests[1].Messages[0].Content)
}

func TestGenerate_Concurrent(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	g := f.generator(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), "x")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, f.endpoint.requests, 8)
}

func TestNew_FailsFastOnMissingConfig(t *testing.T) {
	_, err := New(config.Config{SwaggerPath: "a", SystemPromptPath: "b", Endpoint: "c"})
	assert.ErrorIs(t, err, config.ErrMissingKey)
}

func TestNew_KeepsConfig(t *testing.T) {
	cfg := config.Config{
		SwaggerPath:      "a",
		SystemPromptPath: "b",
		Endpoint:         "https://x",
		APIKey:           "k",
		Temperature:      0.4,
		TopP:             0.3,
	}
	g, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, g.Config())
}

func TestGenerate_APIVersion(t *testing.T) {
	f := newFixture(t, "S", prompt.SpecToken)
	cfg, err := config.FromMap(f.values)
	require.NoError(t, err)

	g, err := New(cfg, WithHTTPClient(f.server.Client()))
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "default version")
	require.NoError(t, err)

	pinned, err := New(cfg, WithHTTPClient(f.server.Client()), WithAPIVersion("2025-01-01-preview"))
	require.NoError(t, err)
	_, err = pinned.Generate(context.Background(), "pinned version")
	require.NoError(t, err)

	f.endpoint.mu.Lock()
	defer f.endpoint.mu.Unlock()
	assert.Equal(t, []string{llm.DefaultAPIVersion, "2025-01-01-preview"}, f.endpoint.versions)
}

func TestKind_Other(t *testing.T) {
	assert.Equal(t, KindOther, Kind(errors.New("boom")))
}
