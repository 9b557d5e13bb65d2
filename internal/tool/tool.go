// Package tool defines the capabilities the agent loop can invoke and the
// registry that maps model-facing names to them. A capability hides its
// backend (an MCP session, an in-process function) behind Execute.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is one capability offered to the model.
type Tool interface {
	Name() string
	Description() string

	// Schema is the JSON Schema of the arguments object.
	Schema() json.RawMessage

	// Execute runs the capability. The same Tool serves every run, so
	// implementations must be safe for concurrent use.
	Execute(ctx context.Context, args json.RawMessage) (Output, error)
}

// Output is what a capability answered.
type Output struct {
	Content string

	// IsError is set when the backend reported the failure in-band, such
	// as an MCP result flagged isError. The call itself succeeded.
	IsError bool
}

// Source contributes tools, typically a tool-service module.
type Source interface {
	Tools() []Tool
}
