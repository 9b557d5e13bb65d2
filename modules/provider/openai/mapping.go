package openai

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// document assembles a JSON body with sjson. The first failed write is
// kept and later writes are ignored.
type document struct {
	buf []byte
	err error
}

func newDocument(seed string) *document {
	return &document{buf: []byte(seed)}
}

func (d *document) set(path string, v any) {
	if d.err == nil {
		d.buf, d.err = sjson.SetBytes(d.buf, path, v)
	}
}

func (d *document) setRaw(path string, raw []byte) {
	if d.err == nil {
		d.buf, d.err = sjson.SetRawBytes(d.buf, path, raw)
	}
}

// push appends child to the array at path.
func (d *document) push(path string, child *document) {
	if d.err == nil && child.err != nil {
		d.err = child.err
	}
	d.setRaw(path+".-1", child.buf)
}

func (d *document) bytes() ([]byte, error) {
	return d.buf, d.err
}

// putMessages writes provider messages to the Chat Completions messages
// array. Replayed arguments are always sent as a JSON object string.
func putMessages(doc *document, msgs []provider.LLMMessage) {
	doc.setRaw("messages", []byte("[]"))
	for _, m := range msgs {
		doc.push("messages", encodeMessage(m))
	}
}

// encodeMessage leaves content null on assistant turns that only carry
// tool calls; the API rejects an empty string there.
func encodeMessage(m provider.LLMMessage) *document {
	doc := newDocument(`{}`)
	doc.set("role", string(m.Role))
	if m.Content != "" || len(m.ToolCalls) == 0 {
		doc.set("content", m.Content)
	} else {
		doc.setRaw("content", []byte("null"))
	}
	if m.Name != "" {
		doc.set("name", m.Name)
	}
	if m.ToolID != "" {
		doc.set("tool_call_id", m.ToolID)
	}
	if len(m.ToolCalls) > 0 {
		doc.setRaw("tool_calls", []byte("[]"))
	}
	for _, tc := range m.ToolCalls {
		call := newDocument(`{"type":"function"}`)
		call.set("id", tc.ID)
		call.set("function.name", tc.Name)
		call.set("function.arguments", string(provider.ObjectArguments(tc.Arguments)))
		doc.push("tool_calls", call)
	}
	return doc
}

// putTools writes tool definitions as function tools. Parameters that are
// not valid JSON are dropped rather than corrupting the body.
func putTools(doc *document, tools []provider.ToolDefinition) {
	if len(tools) > 0 {
		doc.setRaw("tools", []byte("[]"))
	}
	for _, t := range tools {
		fn := newDocument(`{"type":"function"}`)
		fn.set("function.name", t.Name)
		if t.Description != "" {
			fn.set("function.description", t.Description)
		}
		if len(t.Parameters) > 0 && gjson.ValidBytes(t.Parameters) {
			fn.setRaw("function.parameters", t.Parameters)
		}
		doc.push("tools", fn)
	}
}

// finishReason converts an OpenAI finish_reason. Unknown values are passed
// through unchanged.
func finishReason(reason string) provider.FinishReason {
	switch reason {
	case "":
		return ""
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "tool_calls", "function_call":
		return provider.FinishReasonToolUse
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(reason)
	}
}
