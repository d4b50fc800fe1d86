// Package leads scans news feeds for headlines about tracked platforms and
// turns them into research suggestions.
package leads

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/platform"
)

// Store is the subset of the database the scanner writes to.
type Store interface {
	InsertLead(l database.Lead) (int64, error)
}

// Result holds the results of a scan.
type Result struct {
	Entries    int
	Matched    int
	NewLeads   int
	Duplicates int
}

// Scanner matches feed entries, and NewsAPI results when a client is set,
// against a platform watchlist.
type Scanner struct {
	parser   *FeedParser
	news     *NewsClient
	daysBack int
	now      func() time.Time
}

// NewScanner creates a scanner over feeds that looks daysBack days into the
// past.
func NewScanner(feeds []Feed, daysBack int) *Scanner {
	if daysBack <= 0 {
		daysBack = 14
	}
	return &Scanner{parser: NewFeedParser(feeds), daysBack: daysBack, now: time.Now}
}

// WithNews adds NewsAPI as a second lead source. Unconfigured clients are
// ignored.
func (s *Scanner) WithNews(c *NewsClient) *Scanner {
	if c.IsConfigured() {
		s.news = c
	}
	return s
}

// Match returns the first platform in watchlist that entry is about, or ""
// when none is.
func Match(entry Entry, watchlist []string) string {
	text := entry.Title + " " + entry.Summary
	for _, p := range watchlist {
		if platform.Relevant(text, p) {
			return p
		}
	}
	return ""
}

// Scan parses the feeds and stores a lead for every entry about a platform in
// watchlist.
func (s *Scanner) Scan(ctx context.Context, store Store, watchlist []string) (*Result, error) {
	watchlist = dedupe(watchlist)
	r := &Result{}
	if len(watchlist) == 0 {
		zap.L().Info("no platforms to watch, skipping lead scan")
		return r, nil
	}

	cutoff := s.now().AddDate(0, 0, -s.daysBack)
	entries := s.parser.ParseAll(ctx, cutoff)
	if s.news != nil {
		entries = append(entries, s.news.SearchPlatforms(ctx, watchlist, cutoff)...)
	}
	r.Entries = len(entries)

	for _, e := range entries {
		p := Match(e, watchlist)
		if p == "" {
			continue
		}
		r.Matched++

		lead := database.Lead{URL: e.URL, Title: e.Title, Platform: p}
		if e.Source != "" {
			lead.Source = &e.Source
		}
		if e.PublishedDate != "" {
			lead.PublishedDate = &e.PublishedDate
		}

		id, err := store.InsertLead(lead)
		if err != nil {
			return r, err
		}
		if id > 0 {
			r.NewLeads++
		} else {
			r.Duplicates++
		}
	}

	zap.L().Info("lead scan complete",
		zap.Int("entries", r.Entries), zap.Int("matched", r.Matched),
		zap.Int("new", r.NewLeads), zap.Int("duplicates", r.Duplicates))
	return r, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
