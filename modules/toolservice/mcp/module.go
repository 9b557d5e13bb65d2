package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/tool"
)

func init() {
	core.RegisterModule(&Module{})
}

// Interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ tool.Source       = (*Module)(nil)
)

// Module is the toolservice.mcp module. It opens one session per configured
// server during Provision and exposes the union of their tools.
type Module struct {
	config   Config
	logger   *slog.Logger
	sessions []*Session
	tools    []tool.Tool
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "toolservice.mcp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("toolservice.mcp: decode config: %w", err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner. Every server must be reachable:
// a failure closes the sessions opened so far.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	for _, sc := range m.config.Servers {
		if err := m.connect(sc); err != nil {
			_ = m.closeSessions()
			return err
		}
	}

	m.logger.Info("mcp tool services connected",
		"servers", len(m.sessions),
		"tools", len(m.tools),
	)
	return nil
}

func (m *Module) connect(sc ServerConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	s, err := Connect(ctx, sc, m.logger)
	if err != nil {
		return err
	}
	m.sessions = append(m.sessions, s)

	tools, err := s.Tools(ctx)
	if err != nil {
		return err
	}
	m.tools = append(m.tools, tools...)
	return nil
}

// Tools implements tool.Source.
func (m *Module) Tools() []tool.Tool {
	return m.tools
}

// Sessions returns the open sessions in configuration order.
func (m *Module) Sessions() []*Session {
	return m.sessions
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	return m.closeSessions()
}

func (m *Module) closeSessions() error {
	var errs []error
	for _, s := range m.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", s.Name(), err))
		}
	}
	m.sessions = nil
	m.tools = nil
	return errors.Join(errs...)
}
