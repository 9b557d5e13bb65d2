package gateway

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/runner"
)

// responseJSON is the wire form of a finished run.
type responseJSON struct {
	RunID      string        `json:"run_id"`
	Answer     string        `json:"answer"`
	Summary    string        `json:"summary"`
	State      string        `json:"state"`
	StopReason string        `json:"stop_reason"`
	Iterations int           `json:"iterations"`
	Tokens     int           `json:"tokens"`
	Error      string        `json:"error,omitempty"`
	Steps      []runner.Step `json:"steps"`
}

func newResponseJSON(resp agent.Response) responseJSON {
	out := responseJSON{
		RunID:      resp.RunID,
		Answer:     resp.Answer,
		Summary:    resp.Summary,
		State:      string(resp.State),
		StopReason: string(resp.StopReason),
		Iterations: resp.Iterations,
		Tokens:     resp.Usage.TotalTokens,
		Steps:      runner.Steps(resp.Steps),
	}
	if resp.Err != nil {
		out.Error = resp.Err.Error()
	}
	return out
}

// encodeEvent renders a stream event as a JSON object carrying only the
// fields relevant to its type.
func encodeEvent(ev agent.StreamEvent) []byte {
	b := []byte(`{}`)
	set := func(path string, v any) {
		if out, err := sjson.SetBytes(b, path, v); err == nil {
			b = out
		}
	}

	set("type", string(ev.Type))
	set("run_id", ev.RunID)
	set("round", ev.Round)
	switch ev.Type {
	case agent.StreamEventToken:
		set("content", ev.Content)
	case agent.StreamEventToolStarted:
		if c := ev.Call; c != nil {
			set("call.id", c.ID)
			set("call.name", c.Name)
			set("call.repeat", c.Repeat)
			if c.Err == nil && json.Valid(c.Arguments) {
				if out, err := sjson.SetRawBytes(b, "call.arguments", c.Arguments); err == nil {
					b = out
				}
			}
		}
	case agent.StreamEventToolCompleted:
		if res := ev.Result; res != nil {
			set("result.call_id", res.CallID)
			set("result.name", res.Name)
			set("result.output", res.Outcome())
			set("result.failed", res.Failed())
			set("result.cached", res.Cached)
			set("result.duration_ms", res.Duration.Milliseconds())
		}
	default:
		if ev.Final != nil {
			if raw, err := json.Marshal(newResponseJSON(*ev.Final)); err == nil {
				if out, err := sjson.SetRawBytes(b, "response", raw); err == nil {
					b = out
				}
			}
		}
		if ev.Err != nil {
			set("error", ev.Err.Error())
		}
	}
	return b
}
