// Package agent implements the streaming tool-calling loop: it reconstructs
// tool-call requests from fragmented model output, dispatches them
// concurrently, records every outcome in a per-run ledger and decides whether
// to plan another round or stop.
package agent

import (
	"encoding/json"
	"time"

	"github.com/flemzord/mcpflow/internal/provider"
)

// StopReason describes why the agent loop terminated.
type StopReason string

// StopReason constants for agent loop termination.
const (
	StopReasonComplete      StopReason = "complete"
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonToolError     StopReason = "tool_error"
	StopReasonLoopDetected  StopReason = "loop_detected"
	StopReasonTokenBudget   StopReason = "token_budget"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonCanceled      StopReason = "canceled"
	StopReasonError         StopReason = "error"
)

// ToolCallRequest is one tool invocation requested by the model.
//
// While fragments are still arriving the request lives inside the
// reconstructor; once Complete is set it is never mutated again.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Index     int             `json:"index"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Complete  bool            `json:"complete"`

	// Repeat marks a call whose name and arguments were already seen in
	// this run.
	Repeat bool `json:"repeat,omitempty"`

	// Err is set when the arguments could not be reconstructed. Such a
	// request is never sent to a tool.
	Err error `json:"-"`
}

// ToolCallResult is the outcome of one dispatched call.
type ToolCallResult struct {
	CallID   string        `json:"call_id"`
	Name     string        `json:"name"`
	Output   string        `json:"output,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Cached is true when the output was reused from an identical earlier call.
	Cached   bool `json:"cached,omitempty"`
	Panicked bool `json:"panicked,omitempty"`
}

// Failed reports whether the call ended in an error.
func (r ToolCallResult) Failed() bool { return r.Err != nil }

// Outcome returns the text fed back to the model for this call.
func (r ToolCallResult) Outcome() string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	return r.Output
}

// StepKind distinguishes ledger entries.
type StepKind string

// StepKind constants.
const (
	StepKindReasoning StepKind = "reasoning"
	StepKindToolCall  StepKind = "tool_call"
)

// StepRecord is one ledger entry: either reasoning text emitted alongside a
// round's tool calls, or a completed request paired with its result.
type StepRecord struct {
	Round   int             `json:"round"`
	Kind    StepKind        `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Request ToolCallRequest `json:"request"`
	Result  ToolCallResult  `json:"result"`
}

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

// StreamEventType constants for streaming events.
const (
	StreamEventToken         StreamEventType = "token"
	StreamEventToolStarted   StreamEventType = "tool_call_started"
	StreamEventToolCompleted StreamEventType = "tool_call_completed"
	StreamEventRunCompleted  StreamEventType = "run_completed"
	StreamEventRunFailed     StreamEventType = "run_failed"
)

// Terminal reports whether the event ends the stream.
func (t StreamEventType) Terminal() bool {
	return t == StreamEventRunCompleted || t == StreamEventRunFailed
}

// StreamEvent is a single event emitted during a run.
type StreamEvent struct {
	Type    StreamEventType
	RunID   string
	Round   int
	Content string
	Call    *ToolCallRequest
	Result  *ToolCallResult
	// Final is set on terminal events with the aggregated run response.
	Final *Response
	Err   error
}

// Request is the input to one run.
type Request struct {
	// Input is the user's text for this run.
	Input string

	// SystemPrompt overrides LoopConfig.Prefix when non-empty.
	SystemPrompt string

	// History holds prior conversation turns placed between the system
	// prompt and the input.
	History []provider.LLMMessage

	// Tools overrides the registry's declared tools when non-nil.
	Tools []provider.ToolDefinition

	// MaxIterations and BreakIfError override the loop configuration
	// for this run when set.
	MaxIterations int
	BreakIfError  *bool
}

// Response is the outcome of a run.
type Response struct {
	RunID      string              `json:"run_id"`
	Answer     string              `json:"answer"`
	Summary    string              `json:"summary"`
	Steps      []StepRecord        `json:"steps"`
	Iterations int                 `json:"iterations"`
	State      State               `json:"state"`
	StopReason StopReason          `json:"stop_reason"`
	Usage      provider.TokenUsage `json:"usage"`
	Err        error               `json:"-"`
}

// ToolRecords returns only the tool-call entries of the ledger.
func (r Response) ToolRecords() []StepRecord {
	var out []StepRecord
	for _, s := range r.Steps {
		if s.Kind == StepKindToolCall {
			out = append(out, s)
		}
	}
	return out
}
