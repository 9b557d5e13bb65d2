package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/tool"
)

var _ tool.Tool = (*remoteTool)(nil)

// remoteTool is a tool served by an MCP session.
type remoteTool struct {
	session     *Session
	name        string
	remoteName  string
	description string
	schema      json.RawMessage
}

func (t *remoteTool) Name() string            { return t.name }
func (t *remoteTool) Description() string     { return t.description }
func (t *remoteTool) Schema() json.RawMessage { return t.schema }

// Execute sends a tools/call request. A result flagged isError is returned
// as Output.IsError; only protocol and transport failures are errors.
func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	var req mcpgo.CallToolRequest
	req.Params.Name = t.remoteName
	req.Params.Arguments = callArguments(args)

	res, err := t.session.client.CallTool(ctx, req)
	if err != nil {
		return tool.Output{}, fmt.Errorf("%w: %s on %s: %w", ErrCallFailed, t.remoteName, t.session.name, err)
	}
	return tool.Output{Content: resultText(res), IsError: res.IsError}, nil
}

// callArguments returns the arguments object sent to the server. Input that
// is not a JSON object is wrapped as {"value": "<input>"}.
func callArguments(args json.RawMessage) map[string]any {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" {
		return map[string]any{}
	}
	if gjson.Valid(trimmed) && gjson.Parse(trimmed).IsObject() {
		var out map[string]any
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return map[string]any{"value": trimmed}
}

// resultText concatenates the text parts of a result. Structured content is
// used when the server returned no text.
func resultText(res *mcpgo.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcpgo.TextContent:
			b.WriteString(tc.Text)
		case *mcpgo.TextContent:
			b.WriteString(tc.Text)
		}
	}
	if b.Len() == 0 && res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			return string(raw)
		}
	}
	return b.String()
}
