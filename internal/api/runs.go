package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clarkflip/pf-verify/internal/store"
)

// handleListRuns pages through stored runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	q := r.URL.Query()
	page, ok := s.queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := s.queryInt(w, r, "perPage", 50)
	if !ok {
		return
	}

	list, err := s.db.ListRuns(store.RunsQuery{
		Game:    q.Get("game"),
		Kind:    q.Get("kind"),
		Page:    page,
		PerPage: min(perPage, 500),
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// handleGetRun returns one run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RunResponse{Run: run, EngineVersion: EngineVersion})
}

// handleGetRunHits pages through a run's hits in index order
func (s *Server) handleGetRunHits(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.db.GetRun(id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	page, ok := s.queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	perPage, ok := s.queryInt(w, r, "perPage", 100)
	if !ok {
		return
	}

	hits, err := s.db.GetRunHits(id, page, min(perPage, 1000))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hits)
}

// requireStore answers 503 when runs are not persisted.
func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.db != nil {
		return true
	}
	engineErr := NewError(ErrTypeServiceUnavailable, "Run store disabled").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	s.errorHandler.logError(r, engineErr, http.StatusServiceUnavailable)
	s.errorHandler.writeErrorResponse(w, http.StatusServiceUnavailable, engineErr)
	return false
}

// queryInt parses a positive integer query parameter.
func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		s.errorHandler.HandleValidationError(w, r, name, name+" must be a positive integer")
		return 0, false
	}
	return v, true
}
