package telemetry

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/mcpflow/internal/agent"
)

func TestTracer_RunAndToolSpans(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tr := NewTracer(tp)
	ctx := tr.RunStarted(context.Background(), "run-1")

	req := agent.ToolCallRequest{ID: "c1", Name: "factorial"}
	toolCtx := tr.ToolStarted(ctx, "run-1", req)
	tr.ToolFinished(toolCtx, "run-1", req, agent.ToolCallResult{
		Err: fmt.Errorf("%w: negative input", agent.ErrToolInvocation),
	})

	tr.RunFinished(ctx, agent.Response{State: agent.StateDone, StopReason: agent.StopReasonComplete})

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}

	toolSpan, runSpan := spans[0], spans[1]
	if toolSpan.Name() != "tool.call factorial" {
		t.Errorf("tool span name = %q", toolSpan.Name())
	}
	if runSpan.Name() != "agent.run" {
		t.Errorf("run span name = %q", runSpan.Name())
	}
	if toolSpan.Parent().SpanID() != runSpan.SpanContext().SpanID() {
		t.Error("tool span is not a child of the run span")
	}
	if toolSpan.Status().Code != codes.Error {
		t.Errorf("tool span status = %v, want Error", toolSpan.Status().Code)
	}
	if runSpan.Status().Code == codes.Error {
		t.Error("run span should not be marked as error")
	}
}

func TestMultiObserver_ChainsContext(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	m := NewMetrics()
	obs := agent.MultiObserver{m, NewTracer(tp)}

	ctx := obs.RunStarted(context.Background(), "run-2")
	obs.RunFinished(ctx, agent.Response{State: agent.StateFailed, StopReason: agent.StopReasonError})

	if len(rec.Ended()) != 1 {
		t.Errorf("ended spans = %d, want 1", len(rec.Ended()))
	}
}
