package leads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/decayclock/internal/database"
)

var scanNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Tech News</title>
<item><title>Reddit raises API prices again</title><link>%[1]s/reddit</link>
  <description>&lt;p&gt;Third-party apps &amp;amp; moderators react.&lt;/p&gt;</description>
  <pubDate>Mon, 10 Jun 2024 09:00:00 GMT</pubDate></item>
<item><title>Facebook changes news feed</title><link>%[1]s/facebook</link>
  <description>Instagram is unaffected for now.</description>
  <pubDate>Tue, 11 Jun 2024 09:00:00 GMT</pubDate></item>
<item><title>Spotify adds more ads</title><link>%[1]s/spotify-old</link>
  <pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate></item>
<item><title>Local bakery opens</title><link>%[1]s/bakery</link>
  <pubDate>Wed, 12 Jun 2024 09:00:00 GMT</pubDate></item>
</channel></rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			fmt.Fprint(w, "this is not a feed")
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, srv.URL)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memStore struct {
	byURL map[string]database.Lead
	next  int64
}

func (m *memStore) InsertLead(l database.Lead) (int64, error) {
	if _, ok := m.byURL[l.URL]; ok {
		return 0, nil
	}
	m.next++
	m.byURL[l.URL] = l
	return m.next, nil
}

func newScanner(feeds []Feed) *Scanner {
	s := NewScanner(feeds, 14)
	s.now = func() time.Time { return scanNow }
	return s
}

func TestScan(t *testing.T) {
	srv := feedServer(t)
	store := &memStore{byURL: map[string]database.Lead{}}
	s := newScanner([]Feed{{URL: srv.URL + "/rss", Name: "Tech News"}, {URL: srv.URL + "/broken"}})

	res, err := s.Scan(context.Background(), store, []string{"Reddit", "Instagram", "Spotify", "reddit"})
	require.NoError(t, err)

	// Spotify is outside the window and the bakery matches nothing.
	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.NewLeads)
	assert.Equal(t, "Instagram", store.byURL[srv.URL+"/facebook"].Platform)

	lead, ok := store.byURL[srv.URL+"/reddit"]
	require.True(t, ok)
	assert.Equal(t, "Reddit", lead.Platform)
	require.NotNil(t, lead.Source)
	assert.Equal(t, "Tech News", *lead.Source)
	require.NotNil(t, lead.PublishedDate)
	assert.Equal(t, "2024-06-10", *lead.PublishedDate)

	res, err = s.Scan(context.Background(), store, []string{"Reddit"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewLeads)
	assert.Equal(t, 1, res.Duplicates)
}

func TestMatchSkipsSiblingStories(t *testing.T) {
	e := Entry{Title: "Meta launches paid verification", Summary: "Coming to Facebook first, Instagrammers later"}
	assert.Equal(t, "", Match(e, []string{"Instagram"}))
}

func TestScanEmptyWatchlist(t *testing.T) {
	res, err := newScanner(nil).Scan(context.Background(), &memStore{byURL: map[string]database.Lead{}}, []string{" "})
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
}

func TestMatch(t *testing.T) {
	assert.Equal(t, "YouTube", Match(Entry{Title: "YouTube cracks down on ad blockers"}, []string{"Netflix", "YouTube"}))
	assert.Equal(t, "", Match(Entry{Title: "Weather update"}, []string{"Netflix"}))
	assert.Equal(t, "Twitter", Match(Entry{Title: "X limits reading", Summary: "posts per day"}, []string{"Twitter"}))
}

func TestParseItem(t *testing.T) {
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	item := &gofeed.Item{
		Title:           "  Title  ",
		GUID:            "https://example.com/guid",
		Description:     "<b>Bold</b> &amp; plain",
		PublishedParsed: &published,
	}
	e := parseItem(item, "Src")
	require.NotNil(t, e)
	assert.Equal(t, "https://example.com/guid", e.URL)
	assert.Equal(t, "Title", e.Title)
	assert.Equal(t, "2024-03-01", e.PublishedDate)
	assert.Equal(t, "Bold & plain", e.Summary)

	assert.Nil(t, parseItem(&gofeed.Item{Title: "no link"}, "Src"))
	assert.Nil(t, parseItem(&gofeed.Item{Link: "https://x"}, "Src"))
}

func TestIsWithinWindow(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	assert.True(t, isWithinWindow("", cutoff))
	assert.True(t, isWithinWindow("garbage", cutoff))
	assert.True(t, isWithinWindow("2024-06-01", cutoff))
	assert.False(t, isWithinWindow("2024-05-31", cutoff))
}

func TestExtractSourceName(t *testing.T) {
	assert.Equal(t, "Theverge", extractSourceName("https://www.theverge.com/rss/index.xml"))
	assert.Equal(t, "Arstechnica", extractSourceName("https://feeds.arstechnica.com/arstechnica/index"))
	assert.Equal(t, "Localhost", extractSourceName("http://localhost:8080/feed"))
}
