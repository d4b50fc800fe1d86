package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/research"
	"github.com/TobiSchelling/decayclock/internal/verify"
)

const (
	adminCookie    = "decayclock_admin"
	adminKeyHeader = "X-Admin-Key"
	leadLimit      = 25
)

type flash struct {
	Message string
	Error   bool
}

// sessionToken is the login cookie value: an HMAC of the admin key, so the
// key itself never sits in the browser. Rotating the key invalidates it.
func sessionToken(key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(adminCookie))
	return hex.EncodeToString(mac.Sum(nil))
}

// authorized checks the header, the login cookie or the form field against
// the configured key in constant time. An unset admin key rejects everything.
func (s *Server) authorized(r *http.Request) bool {
	want := os.Getenv(s.opts.AdminKeyEnv)
	if want == "" {
		return false
	}

	if got := r.Header.Get(adminKeyHeader); got != "" {
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
	}
	if c, err := r.Cookie(adminCookie); err == nil && c.Value != "" {
		return subtle.ConstantTimeCompare([]byte(c.Value), []byte(sessionToken(want))) == 1
	}
	got := r.PostFormValue("admin_key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodGet {
			s.render(w, http.StatusUnauthorized, "login.html", map[string]any{})
			return
		}
		http.Error(w, "Unauthorized: Invalid admin key", http.StatusUnauthorized)
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", map[string]any{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		zap.L().Warn("rejected admin login", zap.String("remote", r.RemoteAddr))
		s.render(w, http.StatusUnauthorized, "login.html", map[string]any{
			"Flash": flash{Message: "Unauthorized: Invalid admin key", Error: true},
		})
		return
	}

	// No Secure flag: Serve binds to 127.0.0.1 over plain HTTP.
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    sessionToken(os.Getenv(s.opts.AdminKeyEnv)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f *flash
	if msg := q.Get("msg"); msg != "" {
		f = &flash{Message: msg, Error: q.Get("error") == "1"}
	}
	s.renderAdmin(w, http.StatusOK, f)
}

func (s *Server) renderAdmin(w http.ResponseWriter, status int, f *flash) {
	providers, err := s.db.ListProviders()
	if err != nil {
		serverError(w, "loading providers", err)
		return
	}
	recent, err := s.db.RecentServices(recentLimit)
	if err != nil {
		serverError(w, "loading recent services", err)
		return
	}
	leads, err := s.db.OpenLeads(leadLimit)
	if err != nil {
		serverError(w, "loading leads", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		serverError(w, "loading stats", err)
		return
	}

	data := map[string]any{
		"Providers": providers,
		"Recent":    recent,
		"Leads":     leads,
		"Stats":     stats,
	}
	if f != nil {
		data["Flash"] = *f
	}
	s.render(w, status, "admin.html", data)
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("platform"))
	if !research.ValidPlatformName(name) {
		s.renderAdmin(w, http.StatusBadRequest, &flash{Message: "Platform name must be at least 2 characters", Error: true})
		return
	}

	reservation := s.limiter.Reserve()
	if d := reservation.Delay(); d > 0 {
		reservation.Cancel()
		s.renderAdmin(w, http.StatusTooManyRequests, &flash{Message: rateLimitMessage(d), Error: true})
		return
	}

	providers, err := s.opts.Registry.Enabled(r.Context())
	if err != nil {
		serverError(w, "loading providers", err)
		return
	}

	result, err := s.opts.Requester.Research(r.Context(), name, providers)
	if err != nil {
		var rerr *research.Error
		if errors.As(err, &rerr) && rerr.Kind == research.KindRateLimit {
			s.renderAdmin(w, http.StatusTooManyRequests, &flash{Message: rateLimitMessage(rerr.RetryAfter), Error: true})
			return
		}
		msg := err.Error()
		if rerr != nil {
			msg = rerr.Message
		}
		s.renderAdmin(w, http.StatusBadGateway, &flash{Message: "Research failed: " + msg, Error: true})
		return
	}

	if _, err := s.db.SaveResearch(result.Service, result.Events); err != nil {
		zap.L().Error("saving research", zap.String("platform", name), zap.Error(err))
		s.renderAdmin(w, http.StatusInternalServerError, &flash{Message: "Database error: " + err.Error(), Error: true})
		return
	}
	for _, p := range []string{name, result.Service.Name} {
		if err := s.db.MarkPlatformResearched(p); err != nil {
			zap.L().Warn("closing leads", zap.String("platform", p), zap.Error(err))
		}
	}

	s.renderAdmin(w, http.StatusOK, &flash{Message: fmt.Sprintf(
		"Successfully added %d events for %s (%d verified, consensus %d%%)",
		len(result.Events), result.Service.Name,
		result.Metadata.VerifiedEventCount, result.Metadata.ConsensusScore,
	)})
}

func rateLimitMessage(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs <= 0 {
		secs = int(research.DefaultRetryAfter.Seconds())
	}
	return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", secs)
}

func (s *Server) handleSaveProvider(w http.ResponseWriter, r *http.Request) {
	p, err := providerFromForm(r)
	if err != nil {
		redirectAdmin(w, r, err.Error(), true)
		return
	}

	key := strings.TrimSpace(r.FormValue("api_key"))
	if key != "" {
		p.APIKeyEncrypted = s.opts.Cipher.Encrypt(key)
	}

	if p.ID == "" {
		if key == "" {
			redirectAdmin(w, r, "API key is required", true)
			return
		}
		p.Enabled = true
		if _, err := s.db.InsertProvider(p); err != nil {
			serverError(w, "inserting provider", err)
			return
		}
		redirectAdmin(w, r, "Added provider "+p.Name, false)
		return
	}

	if err := s.db.UpdateProvider(p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		serverError(w, "updating provider", err)
		return
	}
	redirectAdmin(w, r, "Updated provider "+p.Name, false)
}

func providerFromForm(r *http.Request) (database.Provider, error) {
	p := database.Provider{
		ID:          strings.TrimSpace(r.FormValue("id")),
		Name:        strings.TrimSpace(r.FormValue("name")),
		BaseURL:     strings.TrimSpace(r.FormValue("base_url")),
		Model:       strings.TrimSpace(r.FormValue("model")),
		Enabled:     r.FormValue("enabled") == "on",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
	if p.Name == "" || p.BaseURL == "" || p.Model == "" {
		return p, errors.New("Name, base URL and model are required")
	}
	if u, err := url.Parse(p.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return p, fmt.Errorf("Invalid base URL: %s", p.BaseURL)
	}

	var err error
	if v := r.FormValue("priority"); v != "" {
		if p.Priority, err = strconv.Atoi(v); err != nil {
			return p, fmt.Errorf("Invalid priority: %s", v)
		}
	}
	if v := r.FormValue("max_tokens"); v != "" {
		if p.MaxTokens, err = strconv.Atoi(v); err != nil || p.MaxTokens <= 0 {
			return p, fmt.Errorf("Invalid max tokens: %s", v)
		}
	}
	if v := r.FormValue("temperature"); v != "" {
		if p.Temperature, err = strconv.ParseFloat(v, 64); err != nil || p.Temperature < 0 || p.Temperature > 2 {
			return p, fmt.Errorf("Invalid temperature: %s", v)
		}
	}
	return p, nil
}

func (s *Server) handleToggleProvider(w http.ResponseWriter, r *http.Request) {
	s.providerAction(w, r, s.db.ToggleProvider, "Provider toggled")
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	s.providerAction(w, r, s.db.DeleteProvider, "Provider deleted")
}

func (s *Server) providerAction(w http.ResponseWriter, r *http.Request, action func(string) error, done string) {
	if err := action(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		serverError(w, "provider action", err)
		return
	}
	redirectAdmin(w, r, done, false)
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.opts.Registry.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		redirectAdmin(w, r, err.Error(), true)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.probeWait)
	defer cancel()
	res := s.probe(ctx, cfg)
	redirectAdmin(w, r, cfg.Name+": "+res.Message, !res.Success)
}

func (s *Server) handleDisputeEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	ev, err := s.db.GetEvent(id)
	if err != nil {
		serverError(w, "loading event", err)
		return
	}
	if ev == nil {
		http.NotFound(w, r)
		return
	}
	if err := s.db.SetEventConfidence(id, string(verify.Disputed)); err != nil {
		serverError(w, "disputing event", err)
		return
	}

	svc, err := s.db.GetService(ev.ServiceID)
	if err != nil || svc == nil {
		redirectAdmin(w, r, "Event marked as disputed", false)
		return
	}
	http.Redirect(w, r, "/platform/"+svc.Slug, http.StatusSeeOther)
}

func (s *Server) handleDismissLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := s.db.SetLeadStatus(id, database.LeadDismissed); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		serverError(w, "dismissing lead", err)
		return
	}
	redirectAdmin(w, r, "Lead dismissed", false)
}

func redirectAdmin(w http.ResponseWriter, r *http.Request, msg string, isErr bool) {
	q := url.Values{}
	q.Set("msg", msg)
	if isErr {
		q.Set("error", "1")
	}
	http.Redirect(w, r, "/admin?"+q.Encode(), http.StatusSeeOther)
}
