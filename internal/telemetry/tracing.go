package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/mcpflow/internal/agent"
)

const instrumentationName = "github.com/flemzord/mcpflow/internal/agent"

// Tracer turns runs and tool calls into spans. A tool span is a child of
// its run span. It implements agent.Observer.
type Tracer struct {
	tracer trace.Tracer
}

var _ agent.Observer = (*Tracer)(nil)

// NewTracer creates a Tracer from any TracerProvider.
func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// NewTracerProvider builds an SDK provider exporting over OTLP/HTTP to
// cfg.OTLPEndpoint. The caller owns Shutdown.
func NewTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	cfg.defaults()
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio()))),
	), nil
}

// RunStarted implements agent.Observer.
func (t *Tracer) RunStarted(ctx context.Context, runID string) context.Context {
	ctx, _ = t.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(attribute.String("mcpflow.run_id", runID)),
	)
	return ctx
}

// ToolStarted implements agent.Observer.
func (t *Tracer) ToolStarted(ctx context.Context, runID string, req agent.ToolCallRequest) context.Context {
	ctx, _ = t.tracer.Start(ctx, "tool.call "+req.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("mcpflow.run_id", runID),
			attribute.String("mcpflow.tool.name", req.Name),
			attribute.String("mcpflow.tool.call_id", req.ID),
			attribute.Bool("mcpflow.tool.repeat", req.Repeat),
		),
	)
	return ctx
}

// ToolFinished implements agent.Observer.
func (t *Tracer) ToolFinished(ctx context.Context, _ string, _ agent.ToolCallRequest, res agent.ToolCallResult) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("mcpflow.tool.cached", res.Cached),
		attribute.String("mcpflow.tool.outcome", outcome(res)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.End()
}

// RunFinished implements agent.Observer.
func (t *Tracer) RunFinished(ctx context.Context, resp agent.Response) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("mcpflow.run.state", string(resp.State)),
		attribute.String("mcpflow.run.stop_reason", string(resp.StopReason)),
		attribute.Int("mcpflow.run.iterations", resp.Iterations),
		attribute.Int("mcpflow.run.tokens", resp.Usage.TotalTokens),
	)
	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}
	span.End()
}
