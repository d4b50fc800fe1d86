package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/decayclock/internal/database"
)

func articlePage(title, body string) string {
	para := strings.Repeat(body+" ", 8)
	return fmt.Sprintf(`<!doctype html><html><head><title>%s</title></head><body>
<article><h1>%s</h1><p>%s</p><p>%s</p><p>%s</p></article></body></html>`, title, title, para, para, para)
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/reddit", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != userAgent {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, articlePage("API changes", "Reddit announced steep pricing for its API, ending many third-party apps."))
	})
	mux.HandleFunc("/cooking", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Bread", "Knead the dough for ten minutes and let it rest in a warm place."))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	srv := newSite(t)
	c := NewChecker(5 * time.Second)
	ctx := context.Background()

	assert.Equal(t, StatusOK, c.Check(ctx, srv.URL+"/reddit", "Reddit"))
	assert.Equal(t, StatusUnrelated, c.Check(ctx, srv.URL+"/cooking", "Reddit"))
	assert.Equal(t, StatusUnreachable, c.Check(ctx, srv.URL+"/gone", "Reddit"))
	assert.Equal(t, StatusUnreachable, c.Check(ctx, "ftp://example.com/file", "Reddit"))
	assert.Equal(t, StatusUnreachable, c.Check(ctx, "::not a url", "Reddit"))
}

func TestCheckTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := NewChecker(50 * time.Millisecond)
	assert.Equal(t, StatusUnreachable, c.Check(context.Background(), slow.URL, "Reddit"))
}

type memStore struct {
	mu       sync.Mutex
	events   []database.EventWithService
	statuses map[int64]string
}

func (m *memStore) EventsWithSources() ([]database.EventWithService, error) {
	return m.events, nil
}

func (m *memStore) SetSourceStatus(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func cited(id int64, service, url string) database.EventWithService {
	return database.EventWithService{
		Event:       database.Event{ID: id, SourceURL: &url},
		ServiceName: service,
	}
}

func TestCheckAll(t *testing.T) {
	srv := newSite(t)
	store := &memStore{
		statuses: make(map[int64]string),
		events: []database.EventWithService{
			cited(1, "Reddit", srv.URL+"/reddit"),
			cited(2, "Reddit", srv.URL+"/cooking"),
			cited(3, "Reddit", "ftp://example.com/x"),
		},
	}

	res, err := NewChecker(5*time.Second).CheckAll(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, &Result{Checked: 3, OK: 1, Unrelated: 1, Unreachable: 1}, res)
	assert.Equal(t, map[int64]string{1: "ok", 2: "unrelated", 3: "unreachable"}, store.statuses)
}

func TestCheckAllNothingToDo(t *testing.T) {
	res, err := NewChecker(0).CheckAll(context.Background(), &memStore{statuses: map[int64]string{}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Checked)
}
