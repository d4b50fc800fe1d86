// Package verify merges the event lists returned by several independent
// providers into one deduplicated, confidence-scored list.
package verify

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TobiSchelling/decayclock/internal/event"
	"github.com/TobiSchelling/decayclock/internal/platform"
)

const (
	titleOverlapThreshold       = 0.4
	descriptionOverlapThreshold = 0.5
)

// Confidence is the cross-provider verification tier of a merged event.
type Confidence string

const (
	Verified   Confidence = "verified"
	Likely     Confidence = "likely"
	Unverified Confidence = "unverified"
	// Disputed is never assigned by CrossVerify; admins set it on stored
	// events they have reason to doubt.
	Disputed Confidence = "disputed"
)

// ProviderResult is the outcome of querying one provider.
type ProviderResult struct {
	ProviderID   string
	ProviderName string
	Response     *event.Response
	Err          error
	Duration     time.Duration
}

// Succeeded reports whether the provider returned a usable response.
func (r ProviderResult) Succeeded() bool {
	return r.Err == nil && r.Response != nil
}

// Verification records how strongly the providers agree on an event.
type Verification struct {
	Confidence     Confidence `json:"confidence"`
	AgreedBy       []string   `json:"agreedBy"`
	ConsensusScore int        `json:"consensusScore"`
}

// Event is a merged event with its verification record.
type Event struct {
	event.Raw
	Verification Verification `json:"verification"`
}

// Metadata summarises a cross-verification pass.
type Metadata struct {
	ProvidersQueried   []string `json:"providersQueried"`
	ProvidersSucceeded []string `json:"providersSucceeded"`
	ConsensusScore     int      `json:"consensusScore"`
	VerifiedEventCount int      `json:"verifiedEventCount"`
	TotalEventCount    int      `json:"totalEventCount"`
}

// Result is the verified answer for one research request.
type Result struct {
	Service  event.Service `json:"service"`
	Events   []Event       `json:"events"`
	Metadata Metadata      `json:"metadata"`
}

type member struct {
	event    event.Raw
	provider string
}

// group is a cluster of events judged to describe the same occurrence. The
// representative is always the first member.
type group struct {
	members []member
}

func (g *group) representative() event.Raw {
	return g.members[0].event
}

// CrossVerify groups equivalent events across the successful results, scores
// each group by provider agreement and assembles the final list. Results are
// read in the order given, which callers keep equal to provider priority.
// The results are not modified.
func CrossVerify(results []ProviderResult, targetPlatform string) Result {
	var succeeded []ProviderResult
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		// Filtering again is idempotent; the requester already applied it.
		filtered := *r.Response
		filtered.Events = platform.FilterEvents(r.Response.Events, targetPlatform)
		r.Response = &filtered
		succeeded = append(succeeded, r)
	}
	totalProviders := len(succeeded)

	groups := groupEvents(succeeded)

	events := make([]Event, 0, len(groups))
	for _, g := range groups {
		events = append(events, mergeGroup(g, totalProviders))
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date().Before(events[j].Date())
	})

	if totalProviders > 1 {
		kept := events[:0]
		for _, e := range events {
			if e.Verification.Confidence != Unverified {
				kept = append(kept, e)
			}
		}
		events = kept
	}

	queried := make([]string, len(results))
	for i, r := range results {
		queried[i] = r.ProviderName
	}
	succeededNames := make([]string, len(succeeded))
	for i, r := range succeeded {
		succeededNames[i] = r.ProviderName
	}

	verifiedCount := 0
	sum := 0
	for _, e := range events {
		if e.Verification.Confidence == Verified {
			verifiedCount++
		}
		sum += e.Verification.ConsensusScore
	}
	overall := 0
	if len(events) > 0 {
		overall = int(math.Round(float64(sum) / float64(len(events))))
	}

	return Result{
		Service: mergeService(results),
		Events:  events,
		Metadata: Metadata{
			ProvidersQueried:   queried,
			ProvidersSucceeded: succeededNames,
			ConsensusScore:     overall,
			VerifiedEventCount: verifiedCount,
			TotalEventCount:    len(events),
		},
	}
}

// groupEvents clusters events greedily: each event joins the first existing
// group whose representative it matches, otherwise it starts a new group.
// EventsMatch is not transitive, so the outcome depends on input order; the
// single greedy pass keeps that order dependence deterministic.
func groupEvents(results []ProviderResult) []*group {
	var groups []*group
	for _, r := range results {
		for _, e := range r.Response.Events {
			m := member{event: e, provider: r.ProviderName}
			joined := false
			for _, g := range groups {
				if EventsMatch(g.representative(), e) {
					g.members = append(g.members, m)
					joined = true
					break
				}
			}
			if !joined {
				groups = append(groups, &group{members: []member{m}})
			}
		}
	}
	return groups
}

func mergeGroup(g *group, totalProviders int) Event {
	agreedBy := distinctProviders(g)

	score := 100
	if totalProviders > 0 {
		score = int(math.Round(float64(len(agreedBy)) / float64(totalProviders) * 100))
	}

	merged := g.representative()
	merged.Severity = mostCommonSeverity(g)

	return Event{
		Raw: merged,
		Verification: Verification{
			Confidence:     DetermineConfidence(len(agreedBy), totalProviders),
			AgreedBy:       agreedBy,
			ConsensusScore: score,
		},
	}
}

// DetermineConfidence maps the number of distinct agreeing providers to a
// confidence tier. A single queried provider cannot corroborate itself, so
// its events are at most likely.
func DetermineConfidence(agreementCount, totalProviders int) Confidence {
	switch {
	case totalProviders == 1:
		return Likely
	case agreementCount >= totalProviders || agreementCount >= 3:
		return Verified
	case agreementCount >= 2:
		return Likely
	default:
		return Unverified
	}
}

func distinctProviders(g *group) []string {
	seen := make(map[string]bool, len(g.members))
	var out []string
	for _, m := range g.members {
		if seen[m.provider] {
			continue
		}
		seen[m.provider] = true
		out = append(out, m.provider)
	}
	return out
}

// mostCommonSeverity is a stable argmax: on ties the severity reached first
// wins, which is the representative's.
func mostCommonSeverity(g *group) event.Severity {
	counts := make(map[event.Severity]int)
	best := g.representative().Severity
	bestCount := 0
	for _, m := range g.members {
		counts[m.event.Severity]++
		if c := counts[m.event.Severity]; c > bestCount {
			bestCount = c
			best = m.event.Severity
		}
	}
	return best
}

func mergeService(results []ProviderResult) event.Service {
	for _, r := range results {
		if r.Succeeded() {
			return r.Response.Service
		}
	}
	return event.Service{Name: "Unknown", Description: "", Category: "other"}
}

// EventsMatch reports whether two events likely describe the same occurrence.
// Clauses are checked in order: same calendar month, compatible category
// (Other matches anything), then title overlap or description overlap with
// equal severity.
func EventsMatch(a, b event.Raw) bool {
	da, db := a.Date(), b.Date()
	if da.Year() != db.Year() || da.Month() != db.Month() {
		return false
	}

	if a.Category != b.Category && a.Category != event.CategoryOther && b.Category != event.CategoryOther {
		return false
	}

	if WordOverlap(a.Title, b.Title) >= titleOverlapThreshold {
		return true
	}

	return WordOverlap(a.Description, b.Description) >= descriptionOverlapThreshold &&
		a.Severity == b.Severity
}

// WordOverlap is the number of shared words longer than two characters,
// divided by the size of the smaller word set.
func WordOverlap(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	return float64(shared) / float64(min(len(wa), len(wb)))
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) > 2 {
			set[w] = true
		}
	}
	return set
}
