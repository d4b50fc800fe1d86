// Package sources checks that the URLs cited by stored events still resolve
// to pages about the platform.
package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/platform"
)

// Status is the outcome of checking one citation.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnrelated   Status = "unrelated"
	StatusUnreachable Status = "unreachable"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
	concurrency    = 4
	userAgent      = "decayclock/1.0 (source checker)"
)

// Store is the subset of the database the checker reads and updates.
type Store interface {
	EventsWithSources() ([]database.EventWithService, error)
	SetSourceStatus(id int64, status string) error
}

// Result holds the results of a CheckAll run.
type Result struct {
	Checked     int
	OK          int
	Unrelated   int
	Unreachable int
}

// Checker fetches cited pages and looks for the platform in their readable
// text.
type Checker struct {
	client *http.Client
}

// NewChecker creates a checker with the given request timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Check fetches sourceURL and reports whether it mentions platformName.
func (c *Checker) Check(ctx context.Context, sourceURL, platformName string) Status {
	text, err := c.fetchText(ctx, sourceURL)
	if err != nil {
		zap.L().Debug("source unreachable", zap.String("url", sourceURL), zap.Error(err))
		return StatusUnreachable
	}
	if platform.MentionsPlatform(text, platformName) {
		return StatusOK
	}
	return StatusUnrelated
}

// CheckAll checks every stored citation and records the outcome. Hosts that
// fail once are not contacted again during the same run.
func (c *Checker) CheckAll(ctx context.Context, store Store) (*Result, error) {
	events, err := store.EventsWithSources()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		zap.L().Info("no cited events to check")
		return &Result{}, nil
	}

	var (
		mu          sync.Mutex
		result      Result
		failedHosts = make(map[string]bool)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, e := range events {
		g.Go(func() error {
			host := hostOf(*e.SourceURL)

			mu.Lock()
			skip := host != "" && failedHosts[host]
			mu.Unlock()

			status := StatusUnreachable
			if !skip {
				status = c.Check(ctx, *e.SourceURL, e.ServiceName)
			}

			mu.Lock()
			result.Checked++
			switch status {
			case StatusOK:
				result.OK++
			case StatusUnrelated:
				result.Unrelated++
			case StatusUnreachable:
				result.Unreachable++
				if host != "" {
					failedHosts[host] = true
				}
			}
			mu.Unlock()

			if err := store.SetSourceStatus(e.ID, string(status)); err != nil {
				return err
			}
			zap.L().Debug("checked source",
				zap.Int64("event", e.ID), zap.String("url", *e.SourceURL), zap.String("status", string(status)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("source check complete",
		zap.Int("checked", result.Checked), zap.Int("ok", result.OK),
		zap.Int("unrelated", result.Unrelated), zap.Int("unreachable", result.Unreachable))
	return &result, nil
}

func (c *Checker) fetchText(ctx context.Context, sourceURL string) (string, error) {
	parsedURL, err := url.Parse(sourceURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return "", errors.New("not an http(s) url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		// Not an article page; fall back to the raw markup.
		return string(body), nil
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return string(body), nil
	}
	return text, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
