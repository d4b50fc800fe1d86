package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TobiSchelling/decayclock/internal/clock"
	"github.com/TobiSchelling/decayclock/internal/timeline"
)

const recentLimit = 10

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	events, err := s.db.AllEvents()
	if err != nil {
		serverError(w, "loading events", err)
		return
	}
	recent, err := s.db.RecentServices(recentLimit)
	if err != nil {
		serverError(w, "loading recent services", err)
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Clock":  clock.Calculate(clock.FromEvents(events), s.now()),
		"Recent": recent,
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.db.EventsWithService()
	if err != nil {
		serverError(w, "loading events", err)
		return
	}

	params := timeline.ParseParams(r.URL.Query())
	filtered := timeline.FilterByType(events, params.Filter)

	data := map[string]any{
		"Params": params,
		"Types":  timeline.UniqueTypes(events),
		"Total":  len(filtered),
	}
	if params.View == timeline.ViewByPlatform {
		data["Groups"] = timeline.GroupByPlatform(filtered)
	} else {
		data["Events"] = timeline.Sort(filtered, timeline.Descending)
	}
	s.render(w, http.StatusOK, "timeline.html", data)
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	svc, err := s.db.GetServiceBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		serverError(w, "loading service", err)
		return
	}
	if svc == nil {
		http.NotFound(w, r)
		return
	}

	events, err := s.db.EventsForService(svc.ID)
	if err != nil {
		serverError(w, "loading service events", err)
		return
	}

	s.render(w, http.StatusOK, "platform.html", map[string]any{
		"Service": svc,
		"Events":  timeline.Sort(events, timeline.Descending),
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "about.html", map[string]any{
		"Body": aboutMarkdown,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
