package llm

import (
	"context"
	"errors"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// AnthropicProvider speaks the vendor message API through the official SDK.
type AnthropicProvider struct {
	identity
	client      sdk.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicProvider creates a provider for the Anthropic Messages API.
// SDK retries are disabled; callers decide whether to retry.
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		identity:    identity{id: cfg.ID, name: cfg.Name},
		client:      sdk.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Query sends prompt as a single user message and returns the first text block.
func (p *AnthropicProvider) Query(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
		Temperature: sdk.Float(p.temperature),
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				rl := &RateLimitError{Provider: p.name}
				if apiErr.Response != nil {
					rl.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
				}
				return "", rl
			}
			return "", &APIError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", eris.Wrap(err, "anthropic: create message")
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", eris.New("no text content in Anthropic response")
}
