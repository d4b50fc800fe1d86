// Package pipeline runs the unattended refresh: scan for leads, research the
// platforms they point at, then re-check cited sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/leads"
	"github.com/TobiSchelling/decayclock/internal/llm"
	"github.com/TobiSchelling/decayclock/internal/research"
	"github.com/TobiSchelling/decayclock/internal/sources"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps      []StepResult
	Researched []string
}

// ProviderSource yields the providers for one research request.
type ProviderSource interface {
	Enabled(ctx context.Context) ([]llm.Config, error)
}

// Pipeline orchestrates the three-step refresh.
type Pipeline struct {
	db            *database.DB
	scanner       *leads.Scanner
	checker       *sources.Checker
	requester     *research.Requester
	providers     ProviderSource
	watch         []string
	researchLimit int
}

// Options configures a Pipeline. ResearchLimit caps how many lead platforms
// are researched per run; zero skips the research step.
type Options struct {
	Scanner       *leads.Scanner
	Checker       *sources.Checker
	Requester     *research.Requester
	Providers     ProviderSource
	Watch         []string
	ResearchLimit int
}

// New creates a new pipeline.
func New(db *database.DB, opts Options) *Pipeline {
	return &Pipeline{
		db:            db,
		scanner:       opts.Scanner,
		checker:       opts.Checker,
		requester:     opts.Requester,
		providers:     opts.Providers,
		watch:         opts.Watch,
		researchLimit: opts.ResearchLimit,
	}
}

// Run executes the pipeline. A failed lead scan still lets the remaining
// steps run against what is already stored.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	r.Steps = append(r.Steps, p.runScan(ctx))

	step, researched := p.runResearch(ctx)
	r.Steps = append(r.Steps, step)
	r.Researched = researched

	r.Steps = append(r.Steps, p.runCheck(ctx))
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	watchlist, _ := p.watchlist()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Scan",
		Summary: fmt.Sprintf("[dry-run] Would scan feeds for %d platforms", len(watchlist)),
	})

	if p.researchLimit > 0 {
		platforms, _ := p.leadPlatforms()
		r.Steps = append(r.Steps, StepResult{
			Name:    "Research",
			Summary: fmt.Sprintf("[dry-run] Would research %s", describe(platforms)),
		})
		r.Researched = platforms
	} else {
		r.Steps = append(r.Steps, StepResult{Name: "Research", Summary: "[dry-run] Skipped"})
	}

	withSources, _ := p.db.EventsWithSources()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Check sources",
		Summary: fmt.Sprintf("[dry-run] %d cited sources to check", len(withSources)),
	})

	return r
}

func (p *Pipeline) runScan(ctx context.Context) StepResult {
	zap.L().Info("step 1/3: scanning for leads")
	if p.scanner == nil {
		return StepResult{Name: "Scan", Summary: "Skipped (no scanner configured)"}
	}
	watchlist, err := p.watchlist()
	if err != nil {
		return StepResult{Name: "Scan", Err: err}
	}
	if len(watchlist) == 0 {
		return StepResult{Name: "Scan", Summary: "Skipped (nothing to watch)"}
	}

	result, err := p.scanner.Scan(ctx, p.db, watchlist)
	if err != nil {
		return StepResult{Name: "Scan", Err: err}
	}
	return StepResult{
		Name:    "Scan",
		Summary: fmt.Sprintf("Found %d new leads (%d entries, %d matched, %d duplicates)", result.NewLeads, result.Entries, result.Matched, result.Duplicates),
	}
}

func (p *Pipeline) runResearch(ctx context.Context) (StepResult, []string) {
	zap.L().Info("step 2/3: researching lead platforms")
	if p.researchLimit <= 0 || p.requester == nil || p.providers == nil {
		return StepResult{Name: "Research", Summary: "Skipped"}, nil
	}

	platforms, err := p.leadPlatforms()
	if err != nil {
		return StepResult{Name: "Research", Err: err}, nil
	}
	if len(platforms) == 0 {
		return StepResult{Name: "Research", Summary: "No open leads"}, nil
	}

	var researched []string
	var failures []string
	for _, name := range platforms {
		events, err := p.researchOne(ctx, name)
		if err != nil {
			zap.L().Warn("research failed", zap.String("platform", name), zap.Error(err))
			failures = append(failures, name)
			var rerr *research.Error
			if errors.As(err, &rerr) && rerr.Kind == research.KindRateLimit {
				break
			}
			continue
		}
		zap.L().Info("research saved", zap.String("platform", name), zap.Int("events", events))
		researched = append(researched, name)
	}

	step := StepResult{
		Name:    "Research",
		Summary: fmt.Sprintf("Researched %s", describe(researched)),
	}
	if len(failures) > 0 {
		step.Summary += fmt.Sprintf(", %d failed", len(failures))
	}
	if len(researched) == 0 && len(failures) > 0 {
		step.Err = fmt.Errorf("research failed for %s", strings.Join(failures, ", "))
	}
	return step, researched
}

func (p *Pipeline) researchOne(ctx context.Context, name string) (int, error) {
	providers, err := p.providers.Enabled(ctx)
	if err != nil {
		return 0, err
	}
	result, err := p.requester.Research(ctx, name, providers)
	if err != nil {
		return 0, err
	}
	if _, err := p.db.SaveResearch(result.Service, result.Events); err != nil {
		return 0, fmt.Errorf("saving research: %w", err)
	}
	for _, lead := range []string{name, result.Service.Name} {
		if err := p.db.MarkPlatformResearched(lead); err != nil {
			return 0, fmt.Errorf("closing leads: %w", err)
		}
	}
	return len(result.Events), nil
}

func (p *Pipeline) runCheck(ctx context.Context) StepResult {
	zap.L().Info("step 3/3: checking sources")
	if p.checker == nil {
		return StepResult{Name: "Check sources", Summary: "Skipped"}
	}
	result, err := p.checker.CheckAll(ctx, p.db)
	if err != nil {
		return StepResult{Name: "Check sources", Err: err}
	}
	return StepResult{
		Name:    "Check sources",
		Summary: fmt.Sprintf("Checked %d sources: %d ok, %d unrelated, %d unreachable", result.Checked, result.OK, result.Unrelated, result.Unreachable),
	}
}

// watchlist is every tracked platform plus the configured extras.
func (p *Pipeline) watchlist() ([]string, error) {
	services, err := p.db.AllServices()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(services)+len(p.watch))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return append(names, p.watch...), nil
}

// leadPlatforms lists distinct platforms with open leads, newest lead first,
// capped at the research limit.
func (p *Pipeline) leadPlatforms() ([]string, error) {
	open, err := p.db.OpenLeads(100)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var platforms []string
	for _, l := range open {
		key := strings.ToLower(l.Platform)
		if seen[key] {
			continue
		}
		seen[key] = true
		platforms = append(platforms, l.Platform)
		if len(platforms) == p.researchLimit {
			break
		}
	}
	return platforms, nil
}

func describe(platforms []string) string {
	switch len(platforms) {
	case 0:
		return "no platforms"
	case 1:
		return "1 platform (" + platforms[0] + ")"
	default:
		return fmt.Sprintf("%d platforms (%s)", len(platforms), strings.Join(platforms, ", "))
	}
}
