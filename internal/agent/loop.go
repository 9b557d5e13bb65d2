package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/flemzord/mcpflow/internal/provider"
)

// Loop drives runs against a provider and a dispatcher. A Loop holds only
// immutable configuration; every run gets its own ledger and guards, so one
// Loop can serve concurrent runs.
type Loop struct {
	provider   provider.Provider
	dispatcher *Dispatcher
	config     LoopConfig
	logger     *slog.Logger
	observer   Observer
}

// NewLoop creates a Loop with the given provider, dispatcher, and config.
func NewLoop(p provider.Provider, d *Dispatcher, cfg LoopConfig) *Loop {
	return &Loop{
		provider:   p,
		dispatcher: d,
		config:     cfg.withDefaults(),
		logger:     slog.New(slog.DiscardHandler),
		observer:   NopObserver{},
	}
}

// SetLogger sets the loop logger and forwards it to the dispatcher.
func (l *Loop) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	l.logger = logger.With("component", "agent")
	l.dispatcher.SetLogger(logger)
}

// SetObserver installs lifecycle callbacks on the loop and its dispatcher.
func (l *Loop) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	l.observer = o
	l.dispatcher.SetObserver(o)
}

// Config returns the effective loop configuration.
func (l *Loop) Config() LoopConfig { return l.config }

// Stream starts a run lazily: nothing happens until the sequence is ranged
// over. The sequence always ends with one run_completed or run_failed event
// unless the consumer stops early, which cancels the run. It cannot be
// restarted; a second iteration yields a single run_failed event carrying
// ErrRunConsumed.
func (l *Loop) Stream(ctx context.Context, req Request) iter.Seq[StreamEvent] {
	var consumed atomic.Bool
	return func(yield func(StreamEvent) bool) {
		if !consumed.CompareAndSwap(false, true) {
			resp := &Response{State: StateFailed, StopReason: StopReasonError, Err: ErrRunConsumed}
			yield(StreamEvent{Type: StreamEventRunFailed, Final: resp, Err: ErrRunConsumed})
			return
		}
		l.newRun(req).execute(ctx, yield)
	}
}

// RunStream runs the loop in a goroutine and delivers its events over a
// channel that is closed after the terminal event. Canceling ctx stops the
// run.
func (l *Loop) RunStream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		for ev := range l.Stream(ctx, req) {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Run executes a run synchronously and returns its response. The returned
// error is the run's failure cause, nil when the run reached Done.
func (l *Loop) Run(ctx context.Context, req Request) (Response, error) {
	var final *Response
	for ev := range l.Stream(ctx, req) {
		if ev.Type.Terminal() {
			final = ev.Final
		}
	}
	if final == nil {
		err := ctx.Err()
		if err == nil {
			err = errors.New("agent: run ended without a terminal event")
		}
		return Response{State: StateFailed, StopReason: StopReasonCanceled, Err: err}, err
	}
	return *final, final.Err
}

// run is the state of one execution. It is confined to the goroutine that
// ranges over the stream.
type run struct {
	id        string
	loop      *Loop
	cfg       LoopConfig
	req       Request
	logger    *slog.Logger
	state     State
	iteration int

	ledger *Ledger
	memory *callMemory
	tokens *tokenBudget
	ids    map[string]struct{}

	// Output of the last planning turn, consumed by dispatch.
	text  string
	calls []ToolCallRequest

	answer     string
	stopReason StopReason
	err        error

	yield   func(StreamEvent) bool
	cancel  context.CancelFunc
	stopped bool
}

func (l *Loop) newRun(req Request) *run {
	cfg := l.config.forRequest(req)
	id := newID()
	return &run{
		id:     id,
		loop:   l,
		cfg:    cfg,
		req:    req,
		logger: l.logger.With("run_id", id),
		state:  StatePlanning,
		ledger: &Ledger{},
		memory: newCallMemory(cfg.LoopThreshold),
		tokens: &tokenBudget{limit: cfg.TokenBudget},
		ids:    make(map[string]struct{}),
	}
}

// newID returns a time-ordered UUIDv7, falling back to a random UUID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// assignID keeps the provider's call id unless it is missing or already
// used in this run.
func (r *run) assignID(providerID string) string {
	id := providerID
	if _, dup := r.ids[id]; id == "" || dup {
		id = newID()
	}
	r.ids[id] = struct{}{}
	return id
}

func (r *run) execute(parent context.Context, yield func(StreamEvent) bool) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.Timeout)
	defer cancel()
	r.cancel = cancel
	r.yield = yield

	ctx = r.loop.observer.RunStarted(ctx, r.id)
	r.logger.Info("run started",
		"max_iterations", r.cfg.MaxIterations,
		"break_if_error", r.cfg.BreakIfError,
		"repeat_policy", r.cfg.RepeatPolicy,
	)

	for !r.state.Terminal() && !r.stopped {
		switch r.state {
		case StatePlanning:
			r.plan(ctx)
		case StateDispatching:
			r.dispatch(ctx)
		case StateEvaluating:
			r.evaluate()
		}
	}

	if r.stopped && !r.state.Terminal() {
		r.state = StateFailed
		r.stopReason = StopReasonCanceled
		r.err = context.Canceled
	}

	resp := r.response()
	r.loop.observer.RunFinished(ctx, resp)
	if resp.State == StateFailed {
		r.logger.Warn("run failed", "iterations", r.iteration, "stop_reason", resp.StopReason, "error", resp.Err)
	} else {
		r.logger.Info("run completed", "iterations", r.iteration, "stop_reason", resp.StopReason)
	}

	if r.stopped {
		return
	}
	typ := StreamEventRunCompleted
	if resp.State == StateFailed {
		typ = StreamEventRunFailed
	}
	r.emit(StreamEvent{Type: typ, RunID: r.id, Round: r.iteration, Content: resp.Answer, Final: &resp, Err: resp.Err})
}

func (r *run) response() Response {
	return Response{
		RunID:      r.id,
		Answer:     r.answer,
		Summary:    r.ledger.Summary(),
		Steps:      r.ledger.Steps(),
		Iterations: r.iteration,
		State:      r.state,
		StopReason: r.stopReason,
		Usage:      r.tokens.used,
		Err:        r.err,
	}
}

// emit delivers ev to the consumer. Once the consumer declines an event the
// run is canceled and nothing else is delivered.
func (r *run) emit(ev StreamEvent) bool {
	if r.stopped {
		return false
	}
	if !r.yield(ev) {
		r.stopped = true
		r.cancel()
	}
	return !r.stopped
}

func (r *run) transition(to State) {
	if err := validateTransition(r.state, to); err != nil {
		r.logger.Error("invalid transition", "error", err)
		r.err = err
		r.stopReason = StopReasonError
		r.state = StateFailed
		return
	}
	r.state = to
}

func (r *run) fail(err error, reason StopReason) {
	r.err = err
	r.stopReason = reason
	r.transition(StateFailed)
}

func (r *run) failFromContext(ctx context.Context) {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		r.fail(err, StopReasonTimeout)
		return
	}
	r.fail(err, StopReasonCanceled)
}

// plan asks the model for the next turn and reconstructs it.
func (r *run) plan(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		r.failFromContext(ctx)
		return
	}

	tools := r.req.Tools
	if tools == nil {
		tools = r.loop.dispatcher.Registry().Definitions()
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	ch, err := r.loop.provider.Stream(streamCtx, provider.CompletionRequest{
		Messages: r.messages(),
		Tools:    tools,
	})
	if err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrTransport, err), StopReasonError)
		return
	}
	// Unblock and drain the provider on every exit path.
	defer func() {
		cancelStream()
		for range ch { //nolint:revive // intentional drain
		}
	}()

	round := r.iteration + 1
	rec := newReconstructor(r.cfg.MaxArgumentBytes, r.assignID)
	var text strings.Builder
	var calls []ToolCallRequest

	collect := func(events []turnEvent) bool {
		for _, ev := range events {
			if ev.call != nil {
				calls = append(calls, *ev.call)
				continue
			}
			text.WriteString(ev.text)
			if !r.emit(StreamEvent{Type: StreamEventToken, RunID: r.id, Round: round, Content: ev.text}) {
				return false
			}
		}
		return true
	}

	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Usage != nil {
			r.tokens.charge(*chunk.Usage)
		}
		if !collect(rec.feed(chunk)) {
			return
		}
	}

	switch {
	case ctx.Err() != nil:
		r.failFromContext(ctx)
		return
	case streamErr != nil:
		r.fail(fmt.Errorf("%w: %w", ErrTransport, streamErr), StopReasonError)
		return
	}
	collect(rec.finish())
	if r.stopped {
		return
	}

	if r.tokens.spent() {
		r.fail(ErrTokenBudgetExceeded, StopReasonTokenBudget)
		return
	}

	if len(calls) == 0 {
		r.answer = text.String()
		r.stopReason = StopReasonComplete
		r.transition(StateDone)
		return
	}

	for i := range calls {
		if r.memory.plan(&calls[i]) {
			r.fail(fmt.Errorf("%w: %s called %d times with the same arguments", ErrLoopDetected, calls[i].Name, r.cfg.LoopThreshold), StopReasonLoopDetected)
			return
		}
	}

	r.text = text.String()
	r.calls = calls
	r.logger.Debug("planned round", "round", round, "tool_calls", len(calls))
	r.transition(StateDispatching)
}

// dispatch runs the planned calls. Worker events flow through a buffered
// channel sized for every event of the round, so workers never block on a
// consumer that went away.
func (r *run) dispatch(ctx context.Context) {
	round := r.iteration + 1
	calls := r.calls
	opts := DispatchOptions{
		RunID:       r.id,
		Round:       round,
		Timeout:     r.cfg.ToolTimeout,
		MaxParallel: r.cfg.MaxParallel,
	}
	if r.cfg.RepeatPolicy == RepeatReuse {
		opts.Reuse = r.memory.prior
	}

	events := make(chan StreamEvent, 2*len(calls))
	done := make(chan []ToolCallResult, 1)
	go func() {
		done <- r.loop.dispatcher.Dispatch(ctx, calls, opts, func(ev StreamEvent) { events <- ev })
	}()

	var results []ToolCallResult
wait:
	for {
		select {
		case ev := <-events:
			if !r.emit(ev) {
				return
			}
		case results = <-done:
			break wait
		}
	}
	// Every event was buffered before Dispatch returned.
	for len(events) > 0 {
		if !r.emit(<-events) {
			return
		}
	}

	r.ledger.appendRound(round, r.text, calls, results)
	for _, s := range r.ledger.toolRecords() {
		if s.Round == round {
			r.memory.record(s.Request, s.Result)
		}
	}
	r.iteration++
	r.text, r.calls = "", nil

	if r.cfg.BreakIfError {
		for _, res := range results {
			if res.Failed() {
				r.fail(fmt.Errorf("%w: %s: %w", ErrToolFailed, res.Name, res.Err), StopReasonToolError)
				return
			}
		}
	}
	r.transition(StateEvaluating)
}

func (r *run) evaluate() {
	if r.iteration >= r.cfg.MaxIterations {
		r.answer = r.ledger.bestEffortAnswer(r.cfg.MaxIterations)
		r.stopReason = StopReasonMaxIterations
		r.transition(StateDone)
		return
	}
	r.transition(StatePlanning)
}

// messages builds the model context: prefix, prior history, the input,
// the ledger and, after a round with repeated calls, a corrective note.
func (r *run) messages() []provider.LLMMessage {
	var msgs []provider.LLMMessage
	if r.cfg.Prefix != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: r.cfg.Prefix})
	}
	msgs = append(msgs, r.req.History...)
	if r.req.Input != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: r.req.Input})
	}
	msgs = append(msgs, r.ledger.Messages(r.cfg.CompactAfter, r.cfg.CompactKeep)...)
	if note := r.repeatNote(); note != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: note})
	}
	return msgs
}

// repeatNote lists the calls of the latest round that repeated an earlier
// call.
func (r *run) repeatNote() string {
	var repeated []string
	for _, s := range r.ledger.toolRecords() {
		if s.Round == r.iteration && s.Request.Repeat {
			repeated = append(repeated, fmt.Sprintf("%s(%s)", s.Request.Name, s.Request.Arguments))
		}
	}
	if len(repeated) == 0 {
		return ""
	}
	return "You already called " + strings.Join(repeated, ", ") +
		" with the same arguments earlier in this run. Use the earlier results instead of repeating the call, or give your final answer."
}
