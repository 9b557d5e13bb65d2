// Package gateway exposes the runner over HTTP: streamed runs over SSE and
// websockets, the run archive, session history, signed webhooks and the
// Prometheus endpoint. It binds to loopback by default and follows the
// module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/schedule"
	"github.com/flemzord/mcpflow/internal/security"
	"github.com/flemzord/mcpflow/internal/telemetry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
	_ Runs              = (*runner.Runner)(nil)
	_ Schedules         = (*schedule.Scheduler)(nil)
)

// Runs is what the gateway needs from the runner.
type Runs interface {
	Stream(ctx context.Context, req runner.Request) iter.Seq[agent.StreamEvent]
	Run(ctx context.Context, req runner.Request) (agent.Response, error)
	Tools() []provider.ToolDefinition
	Archive() memory.RunArchive
	History() memory.HistoryStore
}

// Schedules reports the state of scheduled jobs.
type Schedules interface {
	Status() []schedule.JobStatus
}

// ModuleID is the gateway's configuration key.
const ModuleID core.ModuleID = "gateway"

// Gateway is the HTTP front of the runner. Nothing depends on it.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	auth    *authenticator
	limiter *security.RunLimiter

	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	runs      Runs
	metrics   *telemetry.Metrics
	schedules Schedules

	// base parents webhook runs and every request context. It is canceled
	// when shutdown begins so streams and background runs end promptly.
	base       context.Context
	cancelBase context.CancelFunc
	background sync.WaitGroup
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	g.config.defaults()
	return g.config.validate()
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.auth = newAuthenticator(g.config.Auth)
	g.limiter = security.NewRunLimiter(g.config.Limits)
	for source := range g.config.Webhooks {
		g.logger.Info("webhook source configured", "source", source)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. The runner is required; metrics and
// schedules are served when their modules are loaded.
func (g *Gateway) Start() error {
	runs, err := core.Require[Runs](g.appCtx, runner.Service)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.runs = runs
	g.metrics, _ = core.Lookup[*telemetry.Metrics](g.appCtx, telemetry.MetricsService)
	g.schedules, _ = core.Lookup[Schedules](g.appCtx, schedule.Service)

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	g.serve(ln)
	return nil
}

func (g *Gateway) serve(ln net.Listener) {
	g.base, g.cancelBase = context.WithCancel(context.Background())
	g.startedAt = time.Now()
	g.addr = ln.Addr()
	g.server = &http.Server{
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		ReadTimeout:       g.config.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return g.base },
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}
	g.server.RegisterOnShutdown(g.cancelBase)

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
}

// Addr returns the listening address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Stop implements core.Stopper. In-flight runs are canceled and the
// server drains within shutdown_timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	err := g.server.Shutdown(ctx)
	g.cancelBase()
	g.background.Wait()
	if err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}
