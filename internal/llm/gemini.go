package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// GeminiProvider speaks the Gemini generateContent API through genai.
type GeminiProvider struct {
	identity
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGeminiProvider creates a Gemini provider. The client is built once per
// provider; it does not contact the API until Query.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base + "/"}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &GeminiProvider{
		identity:    identity{id: cfg.ID, name: cfg.Name},
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Query sends prompt as a single user turn and returns the response text.
func (p *GeminiProvider) Query(ctx context.Context, prompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxTokens),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusTooManyRequests {
				return "", &RateLimitError{Provider: p.name}
			}
			return "", &APIError{Provider: p.name, StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", eris.Wrap(err, "gemini: generate content")
	}

	text := resp.Text()
	if text == "" {
		return "", eris.New("no text content in Gemini response")
	}
	return text, nil
}
