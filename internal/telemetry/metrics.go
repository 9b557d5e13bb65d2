package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/tool"
)

const namespace = "mcpflow"

// Tool call outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeCached  = "cached"
)

// Metrics records run and tool activity as Prometheus series. It implements
// agent.Observer and is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	runsInFlight  prometheus.Gauge
	runsTotal     *prometheus.CounterVec
	runIterations prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	tokens        *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ agent.Observer = (*Metrics)(nil)

// NewMetrics creates a Metrics bound to a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs currently executing.",
		}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal state and stop reason.",
		}, []string{"state", "stop_reason"}),
		runIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Planning rounds per finished run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Dispatched tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Model tokens consumed by kind.",
		}, []string{"kind"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Gateway HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one gateway request.
func (m *Metrics) ObserveHTTP(route string, code int, seconds float64) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}

// RunStarted implements agent.Observer.
func (m *Metrics) RunStarted(ctx context.Context, _ string) context.Context {
	m.runsInFlight.Inc()
	return ctx
}

// ToolStarted implements agent.Observer.
func (m *Metrics) ToolStarted(ctx context.Context, _ string, _ agent.ToolCallRequest) context.Context {
	return ctx
}

// ToolFinished implements agent.Observer.
func (m *Metrics) ToolFinished(_ context.Context, _ string, req agent.ToolCallRequest, res agent.ToolCallResult) {
	m.toolCalls.WithLabelValues(req.Name, outcome(res)).Inc()
	if !res.Cached {
		m.toolDuration.WithLabelValues(req.Name).Observe(res.Duration.Seconds())
	}
}

// RunFinished implements agent.Observer.
func (m *Metrics) RunFinished(_ context.Context, resp agent.Response) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(string(resp.State), string(resp.StopReason)).Inc()
	m.runIterations.Observe(float64(resp.Iterations))
	m.tokens.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	m.tokens.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))
}

func outcome(res agent.ToolCallResult) string {
	switch {
	case res.Cached:
		return OutcomeCached
	case res.Err == nil:
		return OutcomeOK
	case errors.Is(res.Err, tool.ErrTimeout), errors.Is(res.Err, agent.ErrToolTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
