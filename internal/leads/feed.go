package leads

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const maxPerFeed = 50

// Entry is a parsed feed item.
type Entry struct {
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
	Summary       string
	Source        string
}

// Feed is one configured RSS/Atom feed.
type Feed struct {
	URL  string
	Name string
}

// FeedParser reads the configured feeds.
type FeedParser struct {
	feeds  []Feed
	parser *gofeed.Parser
}

// NewFeedParser creates a FeedParser.
func NewFeedParser(feeds []Feed) *FeedParser {
	return &FeedParser{feeds: feeds, parser: gofeed.NewParser()}
}

// ParseAll parses every feed and returns entries published on or after
// cutoff. A feed that fails to parse is logged and skipped.
func (fp *FeedParser) ParseAll(ctx context.Context, cutoff time.Time) []Entry {
	var all []Entry
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := fp.parseFeed(ctx, fc.URL, name, cutoff)
		if err != nil {
			zap.L().Warn("failed to parse feed", zap.String("feed", fc.URL), zap.Error(err))
			continue
		}
		all = append(all, entries...)
		zap.L().Info("parsed feed", zap.String("source", name), zap.Int("entries", len(entries)))
	}
	return all
}

func (fp *FeedParser) parseFeed(ctx context.Context, feedURL, sourceName string, cutoff time.Time) ([]Entry, error) {
	feed, err := fp.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}

		entry := parseItem(item, sourceName)
		if entry == nil {
			continue
		}
		if isWithinWindow(entry.PublishedDate, cutoff) {
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item, source string) *Entry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var summary string
	if item.Description != "" {
		summary = stripHTML(item.Description)
	} else if item.Content != "" {
		summary = stripHTML(item.Content)
	}

	return &Entry{
		URL:           itemURL,
		Title:         title,
		PublishedDate: publishedDate,
		Summary:       summary,
		Source:        source,
	}
}

func isWithinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff.Truncate(24 * time.Hour))
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			result.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(entityReplacer.Replace(result.String())), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
