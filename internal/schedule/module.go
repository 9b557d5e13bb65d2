package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/runner"
)

// Service is the name under which the module publishes its Scheduler.
const Service = "schedule.scheduler"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ Runs              = (*runner.Runner)(nil)
)

// Config is the schedule module configuration.
type Config struct {
	Jobs []JobConfig `yaml:"jobs"`
}

// JobConfig describes one scheduled run.
type JobConfig struct {
	Name          string        `yaml:"name"`
	Schedule      string        `yaml:"schedule"`
	Input         string        `yaml:"input"`
	SessionID     string        `yaml:"session_id"`
	SystemPrompt  string        `yaml:"system_prompt"`
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`
}

func (c Config) validate() error {
	seen := make(map[string]struct{}, len(c.Jobs))
	for i, j := range c.Jobs {
		if strings.TrimSpace(j.Name) == "" {
			return fmt.Errorf("schedule: jobs[%d]: name is required", i)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("schedule: duplicate job name %q", j.Name)
		}
		seen[j.Name] = struct{}{}
		if strings.TrimSpace(j.Input) == "" {
			return fmt.Errorf("schedule: job %q: input is required", j.Name)
		}
		if j.MaxIterations < 0 || j.Timeout < 0 {
			return fmt.Errorf("schedule: job %q: max_iterations and timeout must not be negative", j.Name)
		}
		if err := ParseSchedule(j.Schedule); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
	}
	return nil
}

// Module runs configured jobs against the runner.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "schedule",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("schedule: decode config: %w", err)
	}
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.scheduler = NewScheduler(ctx.Logger)
	ctx.RegisterService(Service, m.scheduler)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. The runner is resolved here because it
// is registered after every module has been provisioned.
func (m *Module) Start() error {
	runs, err := core.Require[Runs](m.appCtx, runner.Service)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	for _, jc := range m.config.Jobs {
		if err := m.scheduler.RegisterJob(NewRunJob(jc, runs, m.appCtx.Logger)); err != nil {
			return err
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Scheduler returns the module's scheduler, or nil before Provision.
func (m *Module) Scheduler() *Scheduler {
	return m.scheduler
}
