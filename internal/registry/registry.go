// Package registry resolves the provider configurations a research request
// runs with.
package registry

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/llm"
)

// FallbackID identifies the provider synthesised from the environment.
const FallbackID = "env-fallback"

// Store is the subset of the database the registry reads.
type Store interface {
	EnabledProviders() ([]database.Provider, error)
	GetProvider(id string) (*database.Provider, error)
}

// Decrypter reverses the at-rest obfuscation of API keys.
type Decrypter interface {
	Decrypt(encrypted string) (string, error)
}

// Fallback describes the single provider used when none are stored.
type Fallback struct {
	APIKeyEnv   string
	Name        string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Loader snapshots provider configuration for one request.
type Loader struct {
	Store    Store
	Cipher   Decrypter
	Fallback Fallback
}

// Enabled returns the enabled providers ordered by priority with plaintext
// keys. When the store is unavailable or has nothing enabled, the
// environment fallback is returned instead; it is omitted when its key
// variable is unset.
func (l *Loader) Enabled(ctx context.Context) ([]llm.Config, error) {
	stored, err := l.Store.EnabledProviders()
	if err != nil {
		zap.L().Warn("loading providers from store failed, using environment fallback", zap.Error(err))
		return l.fallback(), nil
	}

	configs := make([]llm.Config, 0, len(stored))
	for _, p := range stored {
		cfg, err := l.toConfig(p)
		if err != nil {
			zap.L().Warn("skipping provider with unreadable key",
				zap.String("provider", p.Name), zap.Error(err))
			continue
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return l.fallback(), nil
	}
	return configs, nil
}

// ByID returns one provider regardless of its enabled state.
func (l *Loader) ByID(ctx context.Context, id string) (llm.Config, error) {
	if id == FallbackID {
		fb := l.fallback()
		if len(fb) == 0 {
			return llm.Config{}, fmt.Errorf("environment fallback not configured: %s is unset", l.Fallback.APIKeyEnv)
		}
		return fb[0], nil
	}

	p, err := l.Store.GetProvider(id)
	if err != nil {
		return llm.Config{}, fmt.Errorf("loading provider %s: %w", id, err)
	}
	if p == nil {
		return llm.Config{}, fmt.Errorf("provider %s: %w", id, database.ErrNotFound)
	}
	return l.toConfig(*p)
}

func (l *Loader) toConfig(p database.Provider) (llm.Config, error) {
	key, err := l.Cipher.Decrypt(p.APIKeyEncrypted)
	if err != nil {
		return llm.Config{}, err
	}
	return llm.Config{
		ID:          p.ID,
		Name:        p.Name,
		BaseURL:     p.BaseURL,
		APIKey:      key,
		Model:       p.Model,
		Enabled:     p.Enabled,
		Priority:    p.Priority,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}, nil
}

func (l *Loader) fallback() []llm.Config {
	key := os.Getenv(l.Fallback.APIKeyEnv)
	if l.Fallback.APIKeyEnv == "" || key == "" {
		return nil
	}
	name := l.Fallback.Name
	if name == "" {
		name = "Claude (env)"
	}
	return []llm.Config{{
		ID:          FallbackID,
		Name:        name,
		BaseURL:     l.Fallback.BaseURL,
		APIKey:      key,
		Model:       l.Fallback.Model,
		Enabled:     true,
		Priority:    0,
		MaxTokens:   l.Fallback.MaxTokens,
		Temperature: l.Fallback.Temperature,
	}}
}
