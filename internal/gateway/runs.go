package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/mcpflow/internal/security"
)

// handleRun serves POST /v1/runs. With "stream": true or an Accept header
// of text/event-stream the run is streamed as server-sent events, one per
// stream event; otherwise the finished run is returned as JSON.
func (g *Gateway) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(g.config.MaxBodyBytes)+1))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		req, err := g.parseRunRequest(body)
		if err != nil {
			g.writeRequestError(w, err)
			return
		}

		release, err := g.limiter.Acquire(clientKey(r))
		if err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		defer release()

		if !req.Stream && r.Header.Get("Accept") != "text/event-stream" {
			resp, _ := g.runs.Run(r.Context(), req.Request)
			writeJSON(w, http.StatusOK, newResponseJSON(resp))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		rc := http.NewResponseController(w)

		// Returning early ends the iteration, which cancels the run.
		for ev := range g.runs.Stream(r.Context(), req.Request) {
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, encodeEvent(ev)); err != nil {
				g.logger.Debug("sse client gone", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeRequestError maps request validation failures to status codes.
func (g *Gateway) writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, security.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
