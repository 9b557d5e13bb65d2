package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/core"
)

// Service names published on the AppContext.
const (
	ObserverService = "telemetry.observer"
	MetricsService  = "telemetry.metrics"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module wires metrics and tracing into the application. Other modules find
// the combined observer under ObserverService and the Prometheus
// collectors under MetricsService.
type Module struct {
	config   Config
	logger   *slog.Logger
	metrics  *Metrics
	provider *sdktrace.TracerProvider
	observer agent.MultiObserver
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "telemetry",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("telemetry: decode config: %w", err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.metricsEnabled() {
		m.metrics = NewMetrics()
		m.observer = append(m.observer, m.metrics)
		ctx.RegisterService(MetricsService, m.metrics)
	}

	if m.config.OTLPEndpoint != "" {
		tp, err := NewTracerProvider(context.Background(), m.config)
		if err != nil {
			return err
		}
		m.provider = tp
		m.observer = append(m.observer, NewTracer(tp))
	}

	ctx.RegisterService(ObserverService, agent.Observer(m.observer))

	m.logger.Info("telemetry provisioned",
		"metrics", m.metrics != nil,
		"tracing", m.provider != nil,
	)
	return nil
}

// Stop implements core.Stopper. Pending spans are flushed.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}

// Observer returns the combined run observer.
func (m *Module) Observer() agent.Observer {
	return m.observer
}

// Metrics returns the Prometheus collectors, or nil when disabled.
func (m *Module) Metrics() *Metrics {
	return m.metrics
}
