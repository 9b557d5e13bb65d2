// Package core provides the module system the mcpflow runtime is assembled
// from: providers, tool services, memory drivers and the gateway register
// themselves here and are loaded from configuration.
package core

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext is what a module sees of the runtime: a logger scoped to the
// module, the data directory, and the service registry shared by all
// modules of one App.
type AppContext struct {
	Logger  *slog.Logger
	DataDir string

	root     *slog.Logger
	configs  map[string]yaml.Node
	services *services
}

type services struct {
	mu     sync.RWMutex
	byName map[string]any
}

// NewAppContext creates the root context. A nil logger means slog.Default.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: &services{byName: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of ctx that hands each module the YAML
// section stored under its ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// Configured reports whether the configuration has a section for id.
func (ctx *AppContext) Configured(id string) bool {
	_, ok := ctx.configs[id]
	return ok
}

// ForModule returns a context whose logger carries the module ID. It
// shares the service registry with ctx.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// RegisterService publishes svc under name. A later registration under the
// same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.byName[name] = svc
}

// Service returns the value registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.byName[name]
	return svc, ok
}

// Lookup returns the service registered under name as a T. ok is false
// when nothing is registered or the value is not a T.
func Lookup[T any](ctx *AppContext, name string) (svc T, ok bool) {
	v, found := ctx.Service(name)
	if !found {
		return svc, false
	}
	svc, ok = v.(T)
	return svc, ok
}

// Require is Lookup for services a module cannot run without.
func Require[T any](ctx *AppContext, name string) (T, error) {
	v, found := ctx.Service(name)
	if !found {
		var zero T
		return zero, fmt.Errorf("service %s is not registered", name)
	}
	svc, ok := v.(T)
	if !ok {
		return svc, fmt.Errorf("service %s has type %T, want %v", name, v, reflect.TypeFor[T]())
	}
	return svc, nil
}

// LoadModule builds the module registered under id and runs it through
// Configure, Provision and Validate. Configure is skipped when the
// configuration has no section for the module. Failures are reported as
// *ModuleError.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, &ModuleError{ID: ModuleID(id), Stage: StageLookup, Err: ErrUnknownModule}
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.configs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, &ModuleError{ID: info.ID, Stage: StageConfigure, Err: err}
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, &ModuleError{ID: info.ID, Stage: StageProvision, Err: err}
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ModuleError{ID: info.ID, Stage: StageValidate, Err: err}
		}
	}
	return mod, nil
}
