package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/llm"
	"github.com/TobiSchelling/decayclock/internal/registry"
	"github.com/TobiSchelling/decayclock/internal/research"
	"github.com/TobiSchelling/decayclock/internal/secret"
	"github.com/TobiSchelling/decayclock/internal/timeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed content/about.md
var aboutMarkdown string

var md = goldmark.New()

// Options carries the collaborators the admin pages need.
type Options struct {
	AdminKeyEnv       string
	ResearchPerMinute int
	Requester         *research.Requester
	Registry          *registry.Loader
	Cipher            *secret.Cipher
	Now               func() time.Time
}

// Server is the HTTP server for the clock, timeline and admin pages.
type Server struct {
	db        *database.DB
	pages     map[string]*template.Template
	router    chi.Router
	opts      Options
	limiter   *rate.Limiter
	now       func() time.Time
	probe     func(context.Context, llm.Config) llm.ConnectionResult
	probeWait time.Duration
}

// New creates a new Server.
func New(db *database.DB, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"formatFull":  timeline.FormatFull,
		"formatMonth": timeline.FormatMonth,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so {{define "content"}}
	// does not collide across pages.
	pageNames := []string{"index.html", "timeline.html", "platform.html", "about.html", "admin.html", "login.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	if opts.AdminKeyEnv == "" {
		opts.AdminKeyEnv = "ADMIN_API_KEY"
	}
	if opts.ResearchPerMinute <= 0 {
		opts.ResearchPerMinute = 6
	}
	if opts.Requester == nil {
		opts.Requester = research.New()
	}
	if opts.Cipher == nil {
		opts.Cipher = secret.NewCipher(secret.EnvKey{Var: "AI_PROVIDER_ENCRYPTION_KEY"})
	}
	if opts.Registry == nil {
		opts.Registry = &registry.Loader{Store: db, Cipher: opts.Cipher}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		db:        db,
		pages:     pages,
		router:    chi.NewRouter(),
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.ResearchPerMinute)), opts.ResearchPerMinute),
		now:       now,
		probe:     llm.TestConnection,
		probeWait: 30 * time.Second,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleClock)
	r.Get("/timeline", s.handleTimeline)
	r.Get("/platform/{slug}", s.handlePlatform)
	r.Get("/about", s.handleAbout)
	r.Get("/health", s.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleAdmin)
			r.Post("/research", s.handleResearch)
			r.Post("/providers", s.handleSaveProvider)
			r.Post("/providers/{id}/toggle", s.handleToggleProvider)
			r.Post("/providers/{id}/delete", s.handleDeleteProvider)
			r.Post("/providers/{id}/test", s.handleTestProvider)
			r.Post("/events/{id}/dispute", s.handleDisputeEvent)
			r.Post("/leads/{id}/dismiss", s.handleDismissLead)
		})
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		zap.L().Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		zap.L().Error("rendering template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func serverError(w http.ResponseWriter, msg string, err error) {
	zap.L().Error(msg, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on the given port until ctx is cancelled.
func Serve(ctx context.Context, db *database.DB, port int, opts Options) error {
	srv, err := New(db, opts)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("server listening", zap.String("url", "http://"+httpSrv.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}
