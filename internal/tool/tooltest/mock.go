// Package tooltest provides in-process tools for tests.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/mcpflow/internal/tool"
)

var _ tool.Tool = (*Tool)(nil)

// Tool is an in-process tool backed by Fn. It records the arguments of
// every call.
type Tool struct {
	ToolName string
	Desc     string
	Params   json.RawMessage
	Fn       func(ctx context.Context, args json.RawMessage) (tool.Output, error)

	mu   sync.Mutex
	args []json.RawMessage
}

// Func returns a tool named name that runs fn.
func Func(name string, fn func(ctx context.Context, args json.RawMessage) (tool.Output, error)) *Tool {
	return &Tool{ToolName: name, Fn: fn}
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return t.ToolName }

// Description implements tool.Tool.
func (t *Tool) Description() string {
	if t.Desc == "" {
		return "test tool " + t.ToolName
	}
	return t.Desc
}

// Schema implements tool.Tool.
func (t *Tool) Schema() json.RawMessage {
	if t.Params == nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return t.Params
}

// Execute implements tool.Tool. Without Fn it answers "ok".
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	t.mu.Lock()
	t.args = append(t.args, args)
	t.mu.Unlock()

	if t.Fn == nil {
		return tool.Output{Content: "ok"}, nil
	}
	return t.Fn(ctx, args)
}

// Calls returns the arguments of every call in arrival order.
func (t *Tool) Calls() []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]json.RawMessage(nil), t.args...)
}
