package openai

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

func encoded(t *testing.T, fill func(*document)) string {
	t.Helper()
	doc := newDocument(`{}`)
	fill(doc)
	raw, err := doc.bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !gjson.ValidBytes(raw) {
		t.Fatalf("invalid JSON: %s", raw)
	}
	return string(raw)
}

func TestPutMessages_RunTranscript(t *testing.T) {
	t.Parallel()

	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "You are a calculator."},
		{Role: provider.MessageRoleUser, Content: "3+5, then 2*4"},
		{Role: provider.MessageRoleAssistant, ToolCalls: []provider.ToolCall{
			{ID: "call_1", Name: "sum", Arguments: json.RawMessage(`{"a":3,"b":5}`)},
			{ID: "call_2", Name: "now"},
		}},
		{Role: provider.MessageRoleTool, Content: "8", ToolID: "call_1", Name: "sum"},
		{Role: provider.MessageRoleTool, Content: "error: clock unavailable", ToolID: "call_2", Name: "now", IsError: true},
		{Role: provider.MessageRoleSystem, Content: "Earlier tool calls in this run (compacted)"},
	}
	body := encoded(t, func(d *document) { putMessages(d, msgs) })

	checks := []struct{ path, want string }{
		{"messages.#", "6"},
		{"messages.0.role", "system"},
		{"messages.1.content", "3+5, then 2*4"},
		{"messages.2.role", "assistant"},
		{"messages.2.tool_calls.#", "2"},
		{"messages.2.tool_calls.0.type", "function"},
		{"messages.2.tool_calls.0.id", "call_1"},
		{"messages.2.tool_calls.0.function.arguments", `{"a":3,"b":5}`},
		{"messages.2.tool_calls.1.function.arguments", `{}`},
		{"messages.3.tool_call_id", "call_1"},
		{"messages.3.name", "sum"},
		{"messages.4.content", "error: clock unavailable"},
		{"messages.5.role", "system"},
	}
	for _, c := range checks {
		if got := gjson.Get(body, c.path).String(); got != c.want {
			t.Errorf("%s = %q, want %q", c.path, got, c.want)
		}
	}
	if r := gjson.Get(body, "messages.2.content"); r.Type != gjson.Null || !r.Exists() {
		t.Errorf("tool-call-only assistant content = %s, want null", r.Raw)
	}
	if gjson.Get(body, "messages.1.content").Type != gjson.String {
		t.Error("user content must be a string")
	}
	if gjson.Get(body, "messages.1.tool_calls").Exists() {
		t.Error("user message carries tool_calls")
	}
}

func TestPutMessages_Empty(t *testing.T) {
	t.Parallel()

	body := encoded(t, func(d *document) { putMessages(d, nil) })
	if got := gjson.Get(body, "messages").Raw; got != "[]" {
		t.Errorf("messages = %s, want []", got)
	}
}

func TestPutMessages_NonObjectArgumentsWrapped(t *testing.T) {
	t.Parallel()

	body := encoded(t, func(d *document) {
		putMessages(d, []provider.LLMMessage{
			{Role: provider.MessageRoleAssistant, Content: "calling", ToolCalls: []provider.ToolCall{
				{ID: "call_1", Name: "echo", Arguments: json.RawMessage(`"hello"`)},
			}},
		})
	})
	if got := gjson.Get(body, "messages.0.tool_calls.0.function.arguments").String(); got != `{"value":"hello"}` {
		t.Errorf("arguments = %q", got)
	}
	if got := gjson.Get(body, "messages.0.content").String(); got != "calling" {
		t.Errorf("content = %q", got)
	}
}

func TestPutTools(t *testing.T) {
	t.Parallel()

	body := encoded(t, func(d *document) {
		putTools(d, []provider.ToolDefinition{
			{
				Name:        "calc_evaluate",
				Description: "Evaluate an expression",
				Parameters:  json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}}}`),
			},
			{Name: "broken", Parameters: json.RawMessage(`{"type":`)},
		})
	})

	checks := []struct{ path, want string }{
		{"tools.#", "2"},
		{"tools.0.type", "function"},
		{"tools.0.function.name", "calc_evaluate"},
		{"tools.0.function.description", "Evaluate an expression"},
		{"tools.0.function.parameters.properties.expression.type", "string"},
		{"tools.1.function.name", "broken"},
	}
	for _, c := range checks {
		if got := gjson.Get(body, c.path).String(); got != c.want {
			t.Errorf("%s = %q, want %q", c.path, got, c.want)
		}
	}
	if gjson.Get(body, "tools.1.function.parameters").Exists() {
		t.Error("invalid parameters were written")
	}
	if gjson.Get(body, "tools.1.function.description").Exists() {
		t.Error("empty description was written")
	}
}

func TestPutTools_NoneOmitsKey(t *testing.T) {
	t.Parallel()

	if body := encoded(t, func(d *document) { putTools(d, nil) }); gjson.Get(body, "tools").Exists() {
		t.Errorf("body = %s, want no tools key", body)
	}
}

func TestFinishReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want provider.FinishReason
	}{
		{"", ""},
		{"stop", provider.FinishReasonStop},
		{"length", provider.FinishReasonLength},
		{"tool_calls", provider.FinishReasonToolUse},
		{"function_call", provider.FinishReasonToolUse},
		{"content_filter", provider.FinishReasonFiltering},
		{"eos", provider.FinishReason("eos")},
	}
	for _, tt := range tests {
		if got := finishReason(tt.in); got != tt.want {
			t.Errorf("finishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
