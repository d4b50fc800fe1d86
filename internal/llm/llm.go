// Package llm adapts heterogeneous text-generation backends to one Provider
// interface. The wire dialect is chosen from the configured endpoint host.
package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the connection and generation setup for one provider. APIKey is
// plaintext and only lives in memory for the duration of a request.
type Config struct {
	ID          string
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Enabled     bool
	Priority    int
	MaxTokens   int
	Temperature float64
}

// Provider sends a single-turn prompt and returns the completion text.
type Provider interface {
	ID() string
	Name() string
	Query(ctx context.Context, prompt string) (string, error)
}

// Dialect identifies the wire protocol spoken by a provider.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectGemini    Dialect = "gemini"
	DialectOpenAI    Dialect = "openai"
)

var dialectHosts = map[string]Dialect{
	"api.anthropic.com":                 DialectAnthropic,
	"generativelanguage.googleapis.com": DialectGemini,
}

// DetectDialect inspects the endpoint host. An empty base URL means the
// default vendor endpoint; unknown hosts are assumed OpenAI-compatible.
func DetectDialect(baseURL string) Dialect {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return DialectAnthropic
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DialectOpenAI
	}
	if d, ok := dialectHosts[strings.ToLower(u.Hostname())]; ok {
		return d
	}
	return DialectOpenAI
}

// New creates the provider matching the configured endpoint.
func New(cfg Config) (Provider, error) {
	switch DetectDialect(cfg.BaseURL) {
	case DialectAnthropic:
		return NewAnthropicProvider(cfg), nil
	case DialectGemini:
		return NewGeminiProvider(cfg)
	default:
		return NewOpenAIProvider(cfg), nil
	}
}

// RateLimitError reports provider throttling.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// APIError is a non-success answer from the provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// parseRetryAfter reads a Retry-After header value given in seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type identity struct {
	id   string
	name string
}

func (i identity) ID() string   { return i.id }
func (i identity) Name() string { return i.name }
