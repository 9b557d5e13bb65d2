package agent

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/mcpflow/internal/tool"
)

// Dispatcher executes the tool calls of one round concurrently against the
// registry. It holds no per-run state and can be shared between runs.
type Dispatcher struct {
	registry *tool.Registry
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher over reg.
func NewDispatcher(reg *tool.Registry) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		observer: NopObserver{},
		logger:   slog.New(slog.DiscardHandler),
	}
}

// SetObserver installs lifecycle callbacks. Call before the first dispatch.
func (d *Dispatcher) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	d.observer = o
}

// SetLogger sets the logger used for per-call diagnostics.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l.With("component", "dispatcher")
	}
}

// Registry returns the registry calls are resolved against.
func (d *Dispatcher) Registry() *tool.Registry { return d.registry }

// DispatchOptions carries the per-run settings of one dispatch.
type DispatchOptions struct {
	RunID string
	Round int

	// Timeout bounds each call. Zero means DefaultToolTimeout.
	Timeout time.Duration

	// MaxParallel bounds concurrent calls. Zero means unbounded.
	MaxParallel int

	// Reuse, when set, may answer a call from an earlier result instead of
	// invoking the tool.
	Reuse func(ToolCallRequest) (ToolCallResult, bool)
}

// Dispatch invokes every call concurrently and returns one result per call,
// sorted by call id. A failing call never aborts its siblings. emit receives
// a started and a completed event per call and is called from worker
// goroutines.
//
// Calls that already started keep running after ctx is canceled, bounded by
// their own timeout; calls still waiting for a slot are not started.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ToolCallRequest, opts DispatchOptions, emit func(StreamEvent)) []ToolCallResult {
	n := len(calls)
	if n == 0 {
		return nil
	}
	if emit == nil {
		emit = func(StreamEvent) {}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultToolTimeout
	}
	maxPar := opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]ToolCallResult, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := calls[idx]
			if err := ctx.Err(); err != nil {
				results[idx] = ToolCallResult{CallID: req.ID, Name: req.Name, Err: err}
				return
			}

			callCtx := d.observer.ToolStarted(context.WithoutCancel(ctx), opts.RunID, req)
			emit(StreamEvent{Type: StreamEventToolStarted, RunID: opts.RunID, Round: opts.Round, Call: &req})

			res := d.invoke(callCtx, req, opts)
			results[idx] = res

			d.observer.ToolFinished(callCtx, opts.RunID, req, res)
			d.logger.Debug("tool call finished",
				"run_id", opts.RunID,
				"call_id", req.ID,
				"tool", req.Name,
				"duration", res.Duration,
				"cached", res.Cached,
				"error", res.Err,
			)
			emit(StreamEvent{Type: StreamEventToolCompleted, RunID: opts.RunID, Round: opts.Round, Call: &req, Result: &res})
		}(i)
	}
	wg.Wait()

	slices.SortStableFunc(results, func(a, b ToolCallResult) int {
		return cmp.Compare(a.CallID, b.CallID)
	})
	return results
}

// invoke runs a single call. Panics are recovered and reported as
// invocation errors.
func (d *Dispatcher) invoke(ctx context.Context, req ToolCallRequest, opts DispatchOptions) (res ToolCallResult) {
	res.CallID = req.ID
	res.Name = req.Name
	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Panicked = true
			res.Output = ""
			res.Err = fmt.Errorf("%w: %s panicked: %v", ErrToolInvocation, req.Name, r)
		}
	}()

	if req.Err != nil {
		res.Err = req.Err
		return res
	}

	if opts.Reuse != nil {
		if prior, ok := opts.Reuse(req); ok {
			res.Output = prior.Output
			res.Cached = true
			return res
		}
	}

	t, err := d.registry.Resolve(req.Name)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownTool, req.Name)
		return res
	}

	out, err := d.registry.Invoke(ctx, t, req.Arguments, opts.Timeout)
	switch {
	case errors.Is(err, tool.ErrTimeout):
		res.Err = fmt.Errorf("%w: %s after %s", ErrToolTimeout, req.Name, opts.Timeout)
	case errors.Is(err, tool.ErrPanicked):
		res.Panicked = true
		res.Err = fmt.Errorf("%w: %w", ErrToolInvocation, err)
	case err != nil:
		res.Err = fmt.Errorf("%w: %s: %w", ErrToolInvocation, req.Name, err)
	case out.IsError:
		res.Output = out.Content
		res.Err = fmt.Errorf("%w: %s: %s", ErrToolInvocation, req.Name, out.Content)
	default:
		res.Output = out.Content
	}
	return res
}
