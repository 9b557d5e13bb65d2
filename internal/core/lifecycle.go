package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive the YAML section stored under their ID in
// the modules map. Configure should decode and check it; it runs before
// the module has an AppContext.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules acquire what they need (API clients, MCP sessions,
// database handles) and publish services with AppContext.RegisterService.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned state. Validate must not have
// side effects.
type Validator interface {
	Validate() error
}

// Starter modules begin background work such as serving HTTP or firing
// scheduled runs. Start runs once every module is loaded and the runner
// is registered, so it is the place to resolve the runner.
type Starter interface {
	Start() error
}

// Stopper modules release their resources. Stop is called in reverse load
// order, including for modules that were loaded but never started.
type Stopper interface {
	Stop(ctx context.Context) error
}
