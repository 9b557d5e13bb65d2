package agent

import "context"

// Observer receives run and tool lifecycle callbacks. Implementations
// typically export metrics or trace spans; the returned context carries any
// span started by the hook to the matching finish call.
//
// Tool hooks are called from dispatch goroutines and must be safe for
// concurrent use.
type Observer interface {
	RunStarted(ctx context.Context, runID string) context.Context
	ToolStarted(ctx context.Context, runID string, req ToolCallRequest) context.Context
	ToolFinished(ctx context.Context, runID string, req ToolCallRequest, res ToolCallResult)
	RunFinished(ctx context.Context, resp Response)
}

// NopObserver ignores every callback.
type NopObserver struct{}

// RunStarted implements Observer.
func (NopObserver) RunStarted(ctx context.Context, _ string) context.Context { return ctx }

// ToolStarted implements Observer.
func (NopObserver) ToolStarted(ctx context.Context, _ string, _ ToolCallRequest) context.Context {
	return ctx
}

// ToolFinished implements Observer.
func (NopObserver) ToolFinished(context.Context, string, ToolCallRequest, ToolCallResult) {}

// RunFinished implements Observer.
func (NopObserver) RunFinished(context.Context, Response) {}

var _ Observer = NopObserver{}

// MultiObserver fans every callback out to a list of observers in order.
// The context returned by one observer is passed to the next.
type MultiObserver []Observer

// RunStarted implements Observer.
func (m MultiObserver) RunStarted(ctx context.Context, runID string) context.Context {
	for _, o := range m {
		ctx = o.RunStarted(ctx, runID)
	}
	return ctx
}

// ToolStarted implements Observer.
func (m MultiObserver) ToolStarted(ctx context.Context, runID string, req ToolCallRequest) context.Context {
	for _, o := range m {
		ctx = o.ToolStarted(ctx, runID, req)
	}
	return ctx
}

// ToolFinished implements Observer.
func (m MultiObserver) ToolFinished(ctx context.Context, runID string, req ToolCallRequest, res ToolCallResult) {
	for _, o := range m {
		o.ToolFinished(ctx, runID, req, res)
	}
}

// RunFinished implements Observer.
func (m MultiObserver) RunFinished(ctx context.Context, resp Response) {
	for _, o := range m {
		o.RunFinished(ctx, resp)
	}
}

var _ Observer = MultiObserver(nil)
