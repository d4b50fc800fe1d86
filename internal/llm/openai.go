package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// OpenAIProvider speaks the OpenAI chat-completions dialect, which also
// covers Ollama, vLLM, OpenRouter and similar gateways.
type OpenAIProvider struct {
	identity
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	client      *http.Client
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// Request deadlines come from the caller's context.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	return &OpenAIProvider{
		identity:    identity{id: cfg.ID, name: cfg.Name},
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}
}

// Query sends prompt as a single user message and returns the first choice.
func (o *OpenAIProvider) Query(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  o.MaxTokens,
		"temperature": o.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", eris.Wrap(err, "marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", eris.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "%s API error", o.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{
			Provider:   o.name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Provider: o.name, StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", eris.Wrap(err, "decoding response")
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", eris.New("no content in OpenAI response")
	}

	return result.Choices[0].Message.Content, nil
}
