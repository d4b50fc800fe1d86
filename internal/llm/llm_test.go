package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDialect(t *testing.T) {
	assert.Equal(t, DialectAnthropic, DetectDialect(""))
	assert.Equal(t, DialectAnthropic, DetectDialect("https://api.anthropic.com"))
	assert.Equal(t, DialectAnthropic, DetectDialect("api.anthropic.com"))
	assert.Equal(t, DialectAnthropic, DetectDialect("https://API.Anthropic.com/v1"))
	assert.Equal(t, DialectGemini, DetectDialect("https://generativelanguage.googleapis.com"))
	assert.Equal(t, DialectOpenAI, DetectDialect("https://api.openai.com/v1"))
	assert.Equal(t, DialectOpenAI, DetectDialect("http://localhost:11434/v1"))
	assert.Equal(t, DialectOpenAI, DetectDialect("https://openrouter.ai/api/v1"))
}

func TestNewSelectsVariant(t *testing.T) {
	p, err := New(Config{ID: "1", Name: "Claude", BaseURL: "https://api.anthropic.com", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicProvider{}, p)
	assert.Equal(t, "Claude", p.Name())
	assert.Equal(t, "1", p.ID())

	p, err = New(Config{ID: "2", Name: "Gemini", BaseURL: "https://generativelanguage.googleapis.com", APIKey: "k", Model: "gemini-2.5-flash"})
	require.NoError(t, err)
	assert.IsType(t, &GeminiProvider{}, p)

	p, err = New(Config{ID: "3", Name: "Local", BaseURL: "http://localhost:11434/v1/", Model: "qwen2.5:7b"})
	require.NoError(t, err)
	require.IsType(t, &OpenAIProvider{}, p)
	assert.Equal(t, "http://localhost:11434/v1", p.(*OpenAIProvider).BaseURL)
}

func TestOpenAIQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.Equal(t, float64(1024), body["max_tokens"])
		assert.InDelta(t, 0.2, body["temperature"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Name: "OpenAI", BaseURL: srv.URL + "/v1", APIKey: "secret", Model: "gpt-4o-mini", MaxTokens: 1024, Temperature: 0.2})
	got, err := p.Query(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Name: "OpenAI", BaseURL: srv.URL})
	_, err := p.Query(context.Background(), "hi")

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Name: "OpenAI", BaseURL: srv.URL})
	_, err := p.Query(context.Background(), "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad key")
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Name: "OpenAI", BaseURL: srv.URL})
	_, err := p.Query(context.Background(), "hi")
	assert.Error(t, err)
}

func TestAnthropicQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "OK"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{Name: "Claude", BaseURL: srv.URL, APIKey: "secret", Model: "claude-sonnet-4-20250514", MaxTokens: 64})
	got, err := p.Query(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "OK", got)
}

func TestAnthropicRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{Name: "Claude", BaseURL: srv.URL, APIKey: "secret", Model: "m", MaxTokens: 64})
	_, err := p.Query(context.Background(), "hi")

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.Equal(t, 1, calls, "no automatic retry")
}

type stubProvider struct {
	reply string
	err   error
}

func (s stubProvider) ID() string   { return "stub" }
func (s stubProvider) Name() string { return "Stub" }
func (s stubProvider) Query(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func TestProbe(t *testing.T) {
	res := Probe(context.Background(), stubProvider{reply: "OK."})
	assert.True(t, res.Success)
	assert.True(t, res.ReplyOK)
	assert.Contains(t, res.Message, "Connection successful (")

	res = Probe(context.Background(), stubProvider{reply: "Hello there"})
	assert.True(t, res.Success)
	assert.False(t, res.ReplyOK)
	assert.Contains(t, res.Message, "unexpected response")

	res = Probe(context.Background(), stubProvider{err: errors.New("connection refused")})
	assert.False(t, res.Success)
	assert.Equal(t, "connection refused", res.Message)
	assert.Zero(t, res.LatencyMs)
}

func TestExtractJSONPlain(t *testing.T) {
	assert.Equal(t, `{"key": "value"}`, ExtractJSON(`{"key": "value"}`))
}

func TestExtractJSONWithCodeFence(t *testing.T) {
	assert.Equal(t, `{"key": "value"}`, ExtractJSON("```json\n{\"key\": \"value\"}\n```"))
	assert.Equal(t, `{"key": "value"}`, ExtractJSON("```\n{\"key\": \"value\"}\n```"))
}

func TestExtractJSONWithProse(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSON("Here you go:\n{\"a\": {\"b\": 1}}\nHope that helps."))
}

func TestExtractJSONNoObject(t *testing.T) {
	assert.Equal(t, "not json at all", ExtractJSON("  not json at all \n"))
	assert.Equal(t, "", ExtractJSON("   "))
}
