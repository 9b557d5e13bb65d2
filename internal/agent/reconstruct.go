package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// turnEvent is one unit produced by the reconstructor: either a text token
// or a finished tool-call request.
type turnEvent struct {
	text string
	call *ToolCallRequest
}

// pendingCall accumulates the fragments of one tool call.
type pendingCall struct {
	id       string
	name     strings.Builder
	args     strings.Builder
	done     bool
	overflow bool
}

// reconstructor turns the raw chunks of one model turn into text tokens and
// complete tool-call requests. It lives for a single turn.
type reconstructor struct {
	maxArgBytes int
	assignID    func(string) string
	pending     map[int]*pendingCall
}

// newReconstructor creates a reconstructor. assignID receives the id sent by
// the provider (possibly empty) and returns the id to use within the run.
func newReconstructor(maxArgBytes int, assignID func(string) string) *reconstructor {
	return &reconstructor{
		maxArgBytes: maxArgBytes,
		assignID:    assignID,
		pending:     make(map[int]*pendingCall),
	}
}

// feed consumes one chunk. Text is returned immediately; a tool call is
// returned as soon as it has a name and its arguments form a JSON object.
func (r *reconstructor) feed(chunk provider.StreamChunk) []turnEvent {
	var events []turnEvent
	if chunk.Content != "" {
		events = append(events, turnEvent{text: chunk.Content})
	}

	for _, d := range chunk.ToolCallDeltas {
		p, ok := r.pending[d.Index]
		if !ok {
			p = &pendingCall{}
			r.pending[d.Index] = p
		}
		// Providers keep sending keep-alive whitespace for finished calls.
		if p.done {
			continue
		}
		if d.ID != "" && p.id == "" {
			p.id = d.ID
		}
		p.name.WriteString(d.Name)

		if d.Arguments != "" && !p.overflow {
			if p.args.Len()+len(d.Arguments) > r.maxArgBytes {
				p.overflow = true
			} else {
				p.args.WriteString(d.Arguments)
			}
		}

		if call, ok := r.tryComplete(d.Index, p); ok {
			events = append(events, turnEvent{call: call})
		}
	}
	return events
}

func (r *reconstructor) tryComplete(index int, p *pendingCall) (*ToolCallRequest, bool) {
	if p.overflow || strings.TrimSpace(p.name.String()) == "" {
		return nil, false
	}
	args := strings.TrimSpace(p.args.String())
	// A proper prefix of an object never ends with its closing brace, so
	// skip the parse until one shows up.
	if !strings.HasSuffix(args, "}") || !isJSONObject(args) {
		return nil, false
	}
	return r.complete(index, p, args), true
}

func (r *reconstructor) complete(index int, p *pendingCall, args string) *ToolCallRequest {
	p.done = true
	req := &ToolCallRequest{
		ID:        r.assignID(p.id),
		Index:     index,
		Name:      strings.TrimSpace(p.name.String()),
		Arguments: []byte(args),
		Complete:  true,
	}
	p.args.Reset()
	return req
}

// finish is called when the turn's stream closed. Calls still pending either
// complete with empty arguments or come back marked malformed.
func (r *reconstructor) finish() []turnEvent {
	indices := make([]int, 0, len(r.pending))
	for idx, p := range r.pending {
		if !p.done {
			indices = append(indices, idx)
		}
	}
	slices.Sort(indices)

	events := make([]turnEvent, 0, len(indices))
	for _, idx := range indices {
		p := r.pending[idx]
		name := strings.TrimSpace(p.name.String())
		args := strings.TrimSpace(p.args.String())

		var reason string
		switch {
		case p.overflow:
			reason = fmt.Sprintf("arguments exceed %d bytes", r.maxArgBytes)
		case name == "":
			reason = "missing tool name"
		case args == "":
			events = append(events, turnEvent{call: r.complete(idx, p, "{}")})
			continue
		default:
			reason = fmt.Sprintf("arguments are not a JSON object: %q", truncate(args, 200))
		}

		p.done = true
		events = append(events, turnEvent{call: &ToolCallRequest{
			ID:       r.assignID(p.id),
			Index:    idx,
			Name:     name,
			Complete: true,
			Err:      fmt.Errorf("%w: %s", ErrMalformedToolCall, reason),
		}})
		p.args.Reset()
	}
	return events
}

func isJSONObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
