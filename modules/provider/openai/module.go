package openai

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
)

// ModuleID is the configuration key of the module.
const ModuleID core.ModuleID = "provider.openai"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
)

// Module exposes the OpenAI provider as the provider.openai module. The
// runner discovers it through the embedded Provider.
type Module struct {
	config Config
	*Provider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("%s: decode config: %w", ModuleID, err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	p, err := New(m.config, ctx.Logger)
	if err != nil {
		return err
	}
	m.Provider = p
	ctx.RegisterService(string(ModuleID), p)
	return nil
}
