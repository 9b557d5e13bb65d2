package core

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ShutdownTimeout bounds Stop. Draining runs and closing MCP sessions get
// this long in total.
const ShutdownTimeout = 30 * time.Second

type moduleState uint8

const (
	stateLoaded moduleState = iota
	stateStarted
	stateStopped
)

type loaded struct {
	id     ModuleID
	module Module
	state  moduleState
}

// App runs a set of modules through their lifecycle. Modules start in load
// order and stop in reverse, so a consumer always stops before the
// services it resolved.
type App struct {
	ctx     *AppContext
	modules []*loaded
	logger  *slog.Logger
}

// NewApp creates an App whose modules share ctx.
func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// Context returns the root AppContext.
func (a *App) Context() *AppContext {
	return a.ctx
}

// LoadModules loads ids in order. On failure every module loaded so far
// is stopped, since Provision may already hold resources.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Stop()
			return err
		}
		a.AppendModule(mod.ModuleInfo().ID, mod)
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds an already-built module to the lifecycle. It is used
// for runtime pieces assembled after LoadModules.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.modules = append(a.modules, &loaded{id: id, module: mod})
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, l := range a.modules {
		if string(l.id) == id {
			return l.module, true
		}
	}
	return nil, false
}

// Modules returns every loaded module in load order.
func (a *App) Modules() []Module {
	out := make([]Module, 0, len(a.modules))
	for _, l := range a.modules {
		out = append(out, l.module)
	}
	return out
}

// Start starts the modules that implement Starter, in load order. If one
// fails, the modules started before it are stopped and the error is
// returned as a *ModuleError.
func (a *App) Start() error {
	for i, l := range a.modules {
		s, ok := l.module.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(l.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(l.id), "error", err)
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			_ = a.stop(ctx, a.modules[:i], stateStarted)
			cancel()
			return &ModuleError{ID: l.id, Stage: StageStart, Err: err}
		}
		l.state = stateStarted
	}
	a.logger.Info("all modules started", "modules", len(a.modules))
	return nil
}

// Stop shuts every module down within ShutdownTimeout. Errors are logged.
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	_ = a.Shutdown(ctx)
}

// Shutdown stops every module that implements Stopper in reverse load
// order, started or not, because modules acquire resources during
// Provision. Each module is stopped at most once. The returned error joins
// every Stop failure.
func (a *App) Shutdown(ctx context.Context) error {
	return a.stop(ctx, a.modules, stateLoaded)
}

// stop stops the modules of mods whose state is at least from.
func (a *App) stop(ctx context.Context, mods []*loaded, from moduleState) error {
	var errs []error
	for i := len(mods) - 1; i >= 0; i-- {
		l := mods[i]
		if l.state == stateStopped || l.state < from {
			continue
		}
		l.state = stateStopped
		s, ok := l.module.(Stopper)
		if !ok {
			continue
		}
		a.logger.Info("stopping module", "module", string(l.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(l.id), "error", err)
			errs = append(errs, &ModuleError{ID: l.id, Stage: StageStop, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Run starts all modules and blocks until ctx is done, then shuts them
// down. The error is the start failure or the joined stop failures.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := a.Shutdown(stopCtx)
	a.logger.Info("shutdown complete")
	return err
}
