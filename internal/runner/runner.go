// Package runner wraps the agent loop with conversation memory and the run
// archive. It is the single entry point the CLI and the gateway use to
// start runs.
package runner

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/tool"
)

// Service is the name the runner is published under on the AppContext.
const Service = "agent.runner"

// Request is one run as submitted by a caller.
type Request struct {
	// SessionID groups runs that share conversation history. Empty means
	// a one-off run with no history.
	SessionID string

	Input        string
	SystemPrompt string

	// MaxIterations and BreakIfError override the loop configuration.
	MaxIterations int
	BreakIfError  *bool
}

// Config assembles a Runner.
type Config struct {
	Loop     *agent.Loop
	Registry *tool.Registry

	// History and Archive are optional.
	History memory.HistoryStore
	Archive memory.RunArchive

	// HistoryLimit is how many stored messages are replayed per run.
	HistoryLimit int

	Logger *slog.Logger
}

// Runner executes runs and records their outcome. It is safe for
// concurrent use.
type Runner struct {
	loop         *agent.Loop
	registry     *tool.Registry
	history      memory.HistoryStore
	archive      memory.RunArchive
	historyLimit int
	logger       *slog.Logger
}

// New creates a Runner. Loop and Registry are required.
func New(cfg Config) (*Runner, error) {
	if cfg.Loop == nil {
		return nil, errors.New("runner: loop is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("runner: tool registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		loop:         cfg.Loop,
		registry:     cfg.Registry,
		history:      cfg.History,
		archive:      cfg.Archive,
		historyLimit: cfg.HistoryLimit,
		logger:       logger.With("component", "runner"),
	}, nil
}

// Tools returns the tool definitions declared to the model.
func (r *Runner) Tools() []provider.ToolDefinition {
	return r.registry.Definitions()
}

// Archive returns the run archive, or nil when runs are not archived.
func (r *Runner) Archive() memory.RunArchive {
	return r.archive
}

// History returns the conversation store, or nil when history is disabled.
func (r *Runner) History() memory.HistoryStore {
	return r.history
}

// Stream starts a run lazily, like agent.Loop.Stream. The session's recent
// history is loaded first; when the terminal event arrives the exchange is
// appended to the history and the run is archived, both before the event
// is yielded. The sequence cannot be restarted.
func (r *Runner) Stream(ctx context.Context, req Request) iter.Seq[agent.StreamEvent] {
	var consumed atomic.Bool
	return func(yield func(agent.StreamEvent) bool) {
		if !consumed.CompareAndSwap(false, true) {
			resp := &agent.Response{State: agent.StateFailed, StopReason: agent.StopReasonError, Err: agent.ErrRunConsumed}
			yield(agent.StreamEvent{Type: agent.StreamEventRunFailed, Final: resp, Err: agent.ErrRunConsumed})
			return
		}

		history, err := memory.Window(ctx, r.history, req.SessionID, r.historyLimit)
		if err != nil {
			r.logger.Warn("loading history failed, running without it", "session", req.SessionID, "error", err)
			history = nil
		}

		areq := agent.Request{
			Input:         req.Input,
			SystemPrompt:  req.SystemPrompt,
			History:       history,
			MaxIterations: req.MaxIterations,
			BreakIfError:  req.BreakIfError,
		}
		for ev := range r.loop.Stream(ctx, areq) {
			if ev.Type.Terminal() && ev.Final != nil {
				r.record(context.WithoutCancel(ctx), req, *ev.Final)
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Run executes a run synchronously. The returned error is the run's
// failure cause, nil when the run reached Done.
func (r *Runner) Run(ctx context.Context, req Request) (agent.Response, error) {
	var final *agent.Response
	for ev := range r.Stream(ctx, req) {
		if ev.Type.Terminal() {
			final = ev.Final
		}
	}
	if final == nil {
		err := ctx.Err()
		if err == nil {
			err = errors.New("runner: run ended without a terminal event")
		}
		return agent.Response{State: agent.StateFailed, StopReason: agent.StopReasonCanceled, Err: err}, err
	}
	return *final, final.Err
}

// record persists a finished run. Failures are logged, never returned: the
// caller already has the run's outcome.
func (r *Runner) record(ctx context.Context, req Request, resp agent.Response) {
	if r.history != nil && req.SessionID != "" && resp.State == agent.StateDone {
		msgs := exchangeMessages(req.Input, resp)
		if err := r.history.Append(ctx, req.SessionID, msgs...); err != nil {
			r.logger.Error("appending history failed", "session", req.SessionID, "run_id", resp.RunID, "error", err)
		}
	}

	if r.archive != nil && resp.RunID != "" {
		rec, err := archiveRecord(req, resp)
		if err == nil {
			err = r.archive.Save(ctx, rec)
		}
		if err != nil {
			r.logger.Error("archiving run failed", "run_id", resp.RunID, "error", err)
		}
	}
}
