package provider

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ObjectArguments returns tool-call arguments as a JSON object for replay
// to a model. Empty arguments become {}, other JSON values are wrapped as
// {"value": ...} and text that is not JSON is wrapped as a string.
func ObjectArguments(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if !gjson.ValidBytes(trimmed) {
		out, _ := sjson.SetBytes([]byte(`{}`), "value", string(trimmed))
		return out
	}
	if gjson.ParseBytes(trimmed).IsObject() {
		return trimmed
	}
	out, _ := sjson.SetRawBytes([]byte(`{}`), "value", trimmed)
	return out
}
