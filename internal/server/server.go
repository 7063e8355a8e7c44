// Package server exposes the operator HTTP API: status, watch management,
// on-demand poll requests, and the resume action that flips the global
// polling mode back to Running.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalro/lexwatch/internal/database"
)

// Server is the admin HTTP API.
type Server struct {
	db     *database.DB
	router chi.Router
}

// New creates the admin server.
func New(db *database.DB) *Server {
	s := &Server{db: db, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the admin server on the given port until the listener fails.
func Serve(db *database.DB, port int) error {
	s := New(db)
	addr := fmt.Sprintf(":%d", port)
	log.Printf("admin API listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/watches", s.handleListWatches)
	s.router.Post("/api/watches", s.handleCreateWatch)
	s.router.Post("/api/watches/{id}/poll", s.handlePollNow)
	s.router.Delete("/api/watches/{id}", s.handleDeleteWatch)
	s.router.Post("/api/polling/resume", s.handleResume)
	s.router.Get("/api/matches/recent", s.handleRecentMatches)
	s.router.Get("/api/notifications", s.handleNotificationLog)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	paused, reason, err := s.db.IsPollingPaused()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"watches":               stats.TotalWatches,
		"active_watches":        stats.ActiveWatches,
		"judgments":             stats.TotalJudgments,
		"matches":               stats.TotalMatches,
		"unnotified_matches":    stats.UnnotifiedMatches,
		"pending_poll_requests": stats.PendingPollRequests,
		"api_calls_today":       stats.APICallsToday,
		"polling_paused":        paused,
		"paused_reason":         reason,
	})
}

func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	watches, err := s.db.GetAllWatches()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]apiWatch, 0, len(watches))
	for _, watch := range watches {
		out = append(out, toAPIWatch(&watch))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string   `json:"name"`
		Type            string   `json:"type"`
		QueryTerms      string   `json:"query_terms"`
		CourtFilter     []string `json:"court_filter"`
		IntervalMinutes int      `json:"polling_interval_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.Name == "" || req.QueryTerms == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name and query_terms are required"))
		return
	}

	id, err := s.db.InsertWatch(req.Name, req.Type, req.QueryTerms, req.CourtFilter, req.IntervalMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	watch, err := s.db.GetWatch(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIWatch(watch))
}

func (s *Server) handlePollNow(w http.ResponseWriter, r *http.Request) {
	id, err := watchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	requestID, err := s.db.CreatePollRequest(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID})
}

func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	id, err := watchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.db.DeleteWatch(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.db.ResumePolling(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	log.Printf("polling resumed by operator")
	writeJSON(w, http.StatusOK, map[string]string{"polling": "running"})
}

func (s *Server) handleRecentMatches(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hours: %q", v))
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
	matches, err := s.db.GetMatchesSince(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]apiMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, toAPIMatch(&m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNotificationLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.GetNotificationLog(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type apiWatch struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	QueryTerms      string   `json:"query_terms"`
	CourtFilter     []string `json:"court_filter,omitempty"`
	IsActive        bool     `json:"is_active"`
	IntervalMinutes int      `json:"polling_interval_minutes"`
	LastPolledAt    *string  `json:"last_polled_at"`
	LastResultCount int      `json:"last_poll_result_count"`
	CreatedAt       string   `json:"created_at"`
}

func toAPIWatch(w *database.Watch) apiWatch {
	return apiWatch{
		ID:              w.ID,
		Name:            w.Name,
		Type:            w.Type,
		QueryTerms:      w.QueryTerms,
		CourtFilter:     w.CourtFilter,
		IsActive:        w.IsActive,
		IntervalMinutes: w.PollingIntervalMinutes,
		LastPolledAt:    w.LastPolledAt,
		LastResultCount: w.LastPollResultCount,
		CreatedAt:       w.CreatedAt,
	}
}

type apiMatch struct {
	ID        int64   `json:"id"`
	WatchName string  `json:"watch_name"`
	Title     string  `json:"title"`
	Court     *string `json:"court"`
	Date      *string `json:"date"`
	URL       string  `json:"url,omitempty"`
	MatchedAt string  `json:"matched_at"`
	Notified  bool    `json:"notified"`
}

func toAPIMatch(m *database.PendingMatch) apiMatch {
	return apiMatch{
		ID:        m.ID,
		WatchName: m.WatchName,
		Title:     m.Judgment.Title,
		Court:     m.Judgment.Court,
		Date:      m.Judgment.JudgmentDate,
		URL:       m.Judgment.URL(),
		MatchedAt: m.MatchedAt,
		Notified:  m.IsNotified,
	}
}

func watchID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid watch id: %q", raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
