package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// fakeClient is a scripted Client recording every call request.
type fakeClient struct {
	mu       sync.Mutex
	calls    []mcpgo.CallToolRequest
	tools    [][]mcpgo.Tool
	result   *mcpgo.CallToolResult
	callErr  error
	initErr  error
	closed   bool
	listReqs []mcpgo.ListToolsRequest
}

func (f *fakeClient) Initialize(_ context.Context, _ mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	res := &mcpgo.InitializeResult{ProtocolVersion: mcpgo.LATEST_PROTOCOL_VERSION}
	res.ServerInfo = mcpgo.Implementation{Name: "fake", Version: "0.0.1"}
	return res, nil
}

// ListTools serves one page per entry in f.tools, chaining them with cursors.
func (f *fakeClient) ListTools(_ context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := len(f.listReqs)
	f.listReqs = append(f.listReqs, req)

	res := &mcpgo.ListToolsResult{}
	if page < len(f.tools) {
		res.Tools = f.tools[page]
	}
	if page+1 < len(f.tools) {
		res.NextCursor = mcpgo.Cursor("page-" + string(rune('1'+page)))
	}
	return res, nil
}

func (f *fakeClient) CallTool(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newFakeSession(t *testing.T, c *fakeClient) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), "fake", c, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestCallArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"object", `{"a":3,"b":5}`, map[string]any{"a": 3.0, "b": 5.0}},
		{"empty", ``, map[string]any{}},
		{"whitespace", "  \n", map[string]any{}},
		{"plain text", `hello`, map[string]any{"value": "hello"}},
		{"number", `42`, map[string]any{"value": "42"}},
		{"array", `[1,2]`, map[string]any{"value": "[1,2]"}},
		{"truncated object", `{"a":`, map[string]any{"value": `{"a":`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := callArguments(json.RawMessage(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("callArguments(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultText(t *testing.T) {
	t.Parallel()

	res := &mcpgo.CallToolResult{Content: []mcpgo.Content{
		mcpgo.TextContent{Type: "text", Text: "50"},
		mcpgo.ImageContent{Type: "image", Data: "aGk=", MIMEType: "image/png"},
		&mcpgo.TextContent{Type: "text", Text: "40"},
	}}
	if got := resultText(res); got != "5040" {
		t.Errorf("resultText = %q, want 5040", got)
	}
}

func TestResultText_StructuredFallback(t *testing.T) {
	t.Parallel()

	res := &mcpgo.CallToolResult{StructuredContent: map[string]any{"total": 8}}
	if got := resultText(res); got != `{"total":8}` {
		t.Errorf("resultText = %q, want structured JSON", got)
	}
}

func TestRemoteTool_Execute(t *testing.T) {
	t.Parallel()

	c := &fakeClient{
		tools:  [][]mcpgo.Tool{{mcpgo.NewTool("sum", mcpgo.WithDescription("adds"))}},
		result: mcpgo.NewToolResultText("8"),
	}
	s := newFakeSession(t, c)
	tools, err := s.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}

	out, err := tools[0].Execute(context.Background(), json.RawMessage(`{"a":3,"b":5}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Content != "8" || out.IsError {
		t.Errorf("output = %+v, want 8", out)
	}
	if len(c.calls) != 1 || c.calls[0].Params.Name != "sum" {
		t.Fatalf("calls = %+v", c.calls)
	}
	args, ok := c.calls[0].Params.Arguments.(map[string]any)
	if !ok || args["a"] != 3.0 || args["b"] != 5.0 {
		t.Errorf("arguments = %#v", c.calls[0].Params.Arguments)
	}
}

func TestRemoteTool_InBandError(t *testing.T) {
	t.Parallel()

	c := &fakeClient{
		tools:  [][]mcpgo.Tool{{mcpgo.NewTool("factorial")}},
		result: mcpgo.NewToolResultError("n must be between 0 and 20"),
	}
	tools, err := newFakeSession(t, c).Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}

	out, err := tools[0].Execute(context.Background(), json.RawMessage(`{"n":-1}`))
	if err != nil {
		t.Fatalf("in-band error should not be a Go error: %v", err)
	}
	if !out.IsError || out.Content != "n must be between 0 and 20" {
		t.Errorf("output = %+v", out)
	}
}

func TestRemoteTool_ProtocolError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	c := &fakeClient{
		tools:   [][]mcpgo.Tool{{mcpgo.NewTool("sum")}},
		callErr: boom,
	}
	tools, err := newFakeSession(t, c).Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}

	_, err = tools[0].Execute(context.Background(), json.RawMessage(`{}`))
	if !errors.Is(err, ErrCallFailed) {
		t.Errorf("error = %v, want ErrCallFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped cause", err)
	}
}

func TestSession_ToolsPaginated(t *testing.T) {
	t.Parallel()

	c := &fakeClient{tools: [][]mcpgo.Tool{
		{mcpgo.NewTool("sum"), mcpgo.NewTool("sub")},
		{mcpgo.NewTool("factorial")},
	}}
	s := newFakeSession(t, c)
	s.toolPrefix = "calc_"

	tools, err := s.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}

	var names []string
	for _, tl := range tools {
		names = append(names, tl.Name())
	}
	want := []string{"calc_sum", "calc_sub", "calc_factorial"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
	if len(c.listReqs) != 2 || c.listReqs[1].Params.Cursor != "page-1" {
		t.Errorf("list requests = %+v", c.listReqs)
	}

	// The prefix is local; the server still sees its own name.
	c.result = mcpgo.NewToolResultText("ok")
	if _, err := tools[2].Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if c.calls[0].Params.Name != "factorial" {
		t.Errorf("remote name = %q, want factorial", c.calls[0].Params.Name)
	}
}

func TestSession_SchemaFromInputSchema(t *testing.T) {
	t.Parallel()

	c := &fakeClient{tools: [][]mcpgo.Tool{{
		mcpgo.NewTool("sum", mcpgo.WithNumber("a", mcpgo.Required())),
	}}}
	tools, err := newFakeSession(t, c).Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}

	var schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(tools[0].Schema(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema.Type != "object" || schema.Properties["a"] == nil {
		t.Errorf("schema = %s", tools[0].Schema())
	}
	if !reflect.DeepEqual(schema.Required, []string{"a"}) {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestNewSession_InitializeError(t *testing.T) {
	t.Parallel()

	_, err := NewSession(context.Background(), "broken", &fakeClient{initErr: errors.New("bad handshake")}, nil)
	if !errors.Is(err, ErrConnect) {
		t.Errorf("error = %v, want ErrConnect", err)
	}
}
