package agent

import "errors"

// Per-call failures. They are recorded in the ledger and only end the run
// when BreakIfError is set.
var (
	ErrMalformedToolCall = errors.New("agent: malformed tool call")
	ErrUnknownTool       = errors.New("agent: unknown tool")
	ErrToolInvocation    = errors.New("agent: tool invocation failed")
	ErrToolTimeout       = errors.New("agent: tool timed out")
)

// Run-level failures.
var (
	ErrTransport           = errors.New("agent: model transport failed")
	ErrLoopDetected        = errors.New("agent: loop detected")
	ErrTokenBudgetExceeded = errors.New("agent: token budget exceeded")
	ErrRunConsumed         = errors.New("agent: run stream already consumed")
	ErrToolFailed          = errors.New("agent: tool call failed with break_if_error set")
)
