package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.instrument)

	// Public: no auth required.
	r.Get("/health", g.health)
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics.Handler())
	}

	// Webhooks carry their own HMAC signature per source.
	r.Post("/v1/webhooks/{source}", g.handleWebhook())

	r.Group(func(r chi.Router) {
		if g.auth != nil {
			r.Use(g.auth.middleware)
		} else {
			g.logger.Warn("gateway: no auth configured, API endpoints are open")
		}

		// Streams are long-lived; only the other endpoints get a write
		// deadline.
		r.Post("/v1/runs", g.handleRun())
		r.Get("/v1/runs/ws", g.handleRunSocket())

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(g.config.WriteTimeout))
			r.Get("/v1/tools", g.tools)
			r.Get("/v1/modules", g.modules)
			r.Get("/v1/schedules", g.jobs)
			r.Get("/v1/runs", g.handleListRuns())
			r.Get("/v1/runs/{id}", g.handleGetRun())
			r.Get("/v1/sessions/{id}/history", g.handleSessionHistory())
			r.Delete("/v1/sessions/{id}", g.handleDeleteSession())
		})
	})

	return r
}

// instrument records request counts and latencies per route pattern.
func (g *Gateway) instrument(next http.Handler) http.Handler {
	if g.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		g.metrics.ObserveHTTP(route, status, time.Since(start).Seconds())
	})
}
