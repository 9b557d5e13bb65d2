package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/schedule"
)

// HealthResponse is served at GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Uptime    float64   `json:"uptime_seconds"`
	Tools     int       `json:"tools"`
	InFlight  int       `json:"runs_in_flight"`
	Jobs      int       `json:"scheduled_jobs"`
}

func (g *Gateway) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		StartedAt: g.startedAt.UTC(),
		Uptime:    time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		Tools:     len(g.runs.Tools()),
		InFlight:  g.limiter.InFlight(),
	}
	if g.schedules != nil {
		resp.Jobs = len(g.schedules.Status())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) tools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.runs.Tools())
}

// modules lists the compiled-in modules and whether each is loaded.
func (g *Gateway) modules(w http.ResponseWriter, _ *http.Request) {
	type module struct {
		ID        string `json:"id"`
		Namespace string `json:"namespace"`
		Loaded    bool   `json:"loaded"`
	}
	infos := core.GetModules()
	out := make([]module, 0, len(infos))
	for _, info := range infos {
		out = append(out, module{
			ID:        string(info.ID),
			Namespace: info.ID.Namespace(),
			Loaded:    g.appCtx.Configured(string(info.ID)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) jobs(w http.ResponseWriter, _ *http.Request) {
	status := []schedule.JobStatus{}
	if g.schedules != nil {
		status = g.schedules.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
