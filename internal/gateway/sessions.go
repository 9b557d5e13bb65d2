package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/mcpflow/internal/memory"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// handleListRuns serves GET /v1/runs. With ?q= it searches inputs and
// answers, otherwise it lists the newest runs, optionally for one
// ?session=. ?limit= bounds the result.
func (g *Gateway) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archive := g.runs.Archive()
		if archive == nil {
			writeError(w, http.StatusNotFound, "run archive disabled")
			return
		}

		limit := defaultListLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxListLimit)
		}

		var (
			recs []memory.RunRecord
			err  error
		)
		if q := r.URL.Query().Get("q"); q != "" {
			recs, err = archive.Search(r.Context(), q, limit)
		} else {
			recs, err = archive.List(r.Context(), r.URL.Query().Get("session"), limit)
		}
		if err != nil {
			g.logger.Error("listing runs failed", "error", err)
			writeError(w, http.StatusInternalServerError, "listing runs failed")
			return
		}
		if recs == nil {
			recs = []memory.RunRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// handleGetRun serves GET /v1/runs/{id}.
func (g *Gateway) handleGetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archive := g.runs.Archive()
		if archive == nil {
			writeError(w, http.StatusNotFound, "run archive disabled")
			return
		}
		rec, err := archive.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, memory.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			g.logger.Error("loading run failed", "error", err)
			writeError(w, http.StatusInternalServerError, "loading run failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleSessionHistory serves GET /v1/sessions/{id}/history.
func (g *Gateway) handleSessionHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := g.runs.History()
		if history == nil {
			writeError(w, http.StatusNotFound, "history disabled")
			return
		}
		msgs, err := history.All(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.logger.Error("loading history failed", "error", err)
			writeError(w, http.StatusInternalServerError, "loading history failed")
			return
		}
		if len(msgs) == 0 {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// handleDeleteSession serves DELETE /v1/sessions/{id}: the session's
// history is purged. Archived runs are kept.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := g.runs.History()
		if history == nil {
			writeError(w, http.StatusNotFound, "history disabled")
			return
		}
		id := chi.URLParam(r, "id")
		n, err := history.Len(r.Context(), id)
		if err == nil && n == 0 {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err == nil {
			err = history.Purge(r.Context(), id)
		}
		if err != nil {
			g.logger.Error("purging session failed", "session", id, "error", err)
			writeError(w, http.StatusInternalServerError, "purging session failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
