package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	newsAPIBaseURL = "https://newsapi.org/v2/everything"
	// decayTerms narrows platform searches to stories about decline.
	decayTerms = "(paywall OR ads OR price OR privacy OR API OR subscription OR layoffs)"
)

// NewsClient searches NewsAPI.
type NewsClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewNewsClient creates a client reading its key from apiKeyEnv.
func NewNewsClient(apiKeyEnv string) *NewsClient {
	return &NewsClient{
		apiKey:  os.Getenv(apiKeyEnv),
		baseURL: newsAPIBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// Search returns up to pageSize articles matching query published since from.
func (c *NewsClient) Search(ctx context.Context, query string, from time.Time, pageSize int) ([]Entry, error) {
	if pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{
		"q":        {query},
		"from":     {from.Format("2006-01-02")},
		"language": {"en"},
		"pageSize": {fmt.Sprintf("%d", pageSize)},
		"sortBy":   {"publishedAt"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q", result.Status)
	}

	var entries []Entry
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var pubDate string
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			pubDate = t.Format("2006-01-02")
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		entries = append(entries, Entry{
			URL:           a.URL,
			Title:         strings.TrimSpace(a.Title),
			PublishedDate: pubDate,
			Summary:       strings.TrimSpace(a.Description),
			Source:        source,
		})
	}
	return entries, nil
}

// SearchPlatforms runs one decline-focused query per platform and merges the
// results, dropping repeated URLs.
func (c *NewsClient) SearchPlatforms(ctx context.Context, platforms []string, from time.Time) []Entry {
	seen := make(map[string]struct{})
	var all []Entry
	for _, p := range platforms {
		q := fmt.Sprintf("%q AND %s", p, decayTerms)
		entries, err := c.Search(ctx, q, from, 20)
		if err != nil {
			zap.L().Warn("newsapi search failed", zap.String("platform", p), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if _, ok := seen[e.URL]; ok {
				continue
			}
			seen[e.URL] = struct{}{}
			all = append(all, e)
		}
	}
	return all
}
