// Package research asks every enabled provider about a platform at once and
// cross-verifies what comes back.
package research

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/decayclock/internal/llm"
	"github.com/TobiSchelling/decayclock/internal/platform"
	"github.com/TobiSchelling/decayclock/internal/verify"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 60 * time.Second

// Factory builds a provider from its configuration.
type Factory func(llm.Config) (llm.Provider, error)

// Requester runs research requests. It holds no per-request state and is
// safe for concurrent use.
type Requester struct {
	timeout time.Duration
	factory Factory
	now     func() time.Time
}

// Option configures a Requester.
type Option func(*Requester)

// WithTimeout sets the per-provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithProviderFactory replaces llm.New.
func WithProviderFactory(f Factory) Option {
	return func(r *Requester) { r.factory = f }
}

// WithClock sets the time source used to reject future-dated events.
func WithClock(now func() time.Time) Option {
	return func(r *Requester) { r.now = now }
}

// New creates a Requester.
func New(opts ...Option) *Requester {
	r := &Requester{
		timeout: DefaultTimeout,
		factory: llm.New,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Research queries all enabled providers concurrently and returns the
// cross-verified result. Individual provider failures only reduce the
// result; an *Error is returned when no provider is configured, every
// provider fails, or no event survives verification.
func (r *Requester) Research(ctx context.Context, platformName string, providers []llm.Config) (*verify.Result, error) {
	active := activeProviders(providers)
	if len(active) == 0 {
		return nil, &Error{
			Kind:    KindAPI,
			Message: "No AI providers configured. Add providers in admin settings or set ANTHROPIC_API_KEY.",
		}
	}

	logger := zap.L().With(zap.String("platform", platformName))
	logger.Info("starting research", zap.Int("providers", len(active)))

	prompt := BuildPrompt(platformName)
	results := make([]verify.ProviderResult, len(active))

	var g errgroup.Group
	for i, cfg := range active {
		g.Go(func() error {
			results[i] = r.query(ctx, cfg, prompt, platformName)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	var firstErr error
	for _, res := range results {
		if res.Succeeded() {
			succeeded++
			logger.Info("provider succeeded",
				zap.String("provider", res.ProviderName),
				zap.Int("events", len(res.Response.Events)),
				zap.Duration("duration", res.Duration))
			continue
		}
		logger.Warn("provider failed",
			zap.String("provider", res.ProviderName),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err))
		if firstErr == nil {
			firstErr = res.Err
		}
	}
	if succeeded == 0 {
		return nil, classify(firstErr)
	}

	result := verify.CrossVerify(results, platformName)
	if len(result.Events) == 0 {
		return nil, validationError("No valid events found after cross-verification")
	}

	logger.Info("research complete",
		zap.Int("succeeded", succeeded),
		zap.Int("events", result.Metadata.TotalEventCount),
		zap.Int("verified", result.Metadata.VerifiedEventCount),
		zap.Int("consensus", result.Metadata.ConsensusScore))
	return &result, nil
}

// QueryProvider asks a single provider and returns its filtered result. It never
// returns an error; failures are carried in the result.
func (r *Requester) QueryProvider(ctx context.Context, cfg llm.Config, platformName string) verify.ProviderResult {
	return r.query(ctx, cfg, BuildPrompt(platformName), platformName)
}

func (r *Requester) query(ctx context.Context, cfg llm.Config, prompt, platformName string) verify.ProviderResult {
	start := time.Now()
	res := verify.ProviderResult{ProviderID: cfg.ID, ProviderName: cfg.Name}

	provider, err := r.factory(cfg)
	if err != nil {
		res.Err = classify(err)
		res.Duration = time.Since(start)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := provider.Query(ctx, prompt)
		ch <- reply{text: text, err: err}
	}()

	var text string
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case rep := <-ch:
		text, err = rep.text, rep.err
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = classify(err)
		return res
	}

	resp, err := ParseResponse(text, r.now())
	if err != nil {
		res.Err = err
		return res
	}
	resp.Events = platform.FilterEvents(resp.Events, platformName)
	res.Response = resp
	return res
}

// activeProviders keeps enabled providers ordered by ascending priority.
func activeProviders(providers []llm.Config) []llm.Config {
	var active []llm.Config
	for _, p := range providers {
		if p.Enabled {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})
	return active
}

// ValidPlatformName reports whether name is long enough to research.
func ValidPlatformName(name string) bool {
	return len([]rune(strings.TrimSpace(name))) >= 2
}
