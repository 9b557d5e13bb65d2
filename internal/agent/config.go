package agent

import "time"

// Default values for LoopConfig.
const (
	DefaultMaxIterations    = 10
	DefaultTokenBudget      = 0 // 0 means unlimited.
	DefaultTimeout          = 5 * time.Minute
	DefaultToolTimeout      = 30 * time.Second
	DefaultLoopThreshold    = 0 // 0 disables loop detection.
	DefaultMaxArgumentBytes = 1 << 20
	DefaultCompactAfter     = 10
	DefaultCompactKeep      = 5
)

// RepeatPolicy decides what happens to a call identical to an earlier one.
type RepeatPolicy string

// RepeatPolicy constants.
const (
	// RepeatReinvoke always invokes the tool again.
	RepeatReinvoke RepeatPolicy = "reinvoke"
	// RepeatReuse answers the call with the earlier result.
	RepeatReuse RepeatPolicy = "reuse"
)

// LoopConfig controls the behavior of the agent loop. It is copied into
// every run and never mutated afterwards.
type LoopConfig struct {
	// Prefix seeds the model context as the system message.
	Prefix string

	// MaxIterations bounds the number of tool dispatch rounds.
	MaxIterations int

	// BreakIfError fails the run after a round in which any call failed.
	BreakIfError bool

	// TokenBudget is the cumulative token limit (input + output).
	// Zero means unlimited.
	TokenBudget int

	// Timeout is the maximum wall-clock duration for the loop.
	Timeout time.Duration

	// ToolTimeout bounds every single tool invocation.
	ToolTimeout time.Duration

	// MaxParallel bounds concurrent tool calls within a round.
	// Zero means unbounded.
	MaxParallel int

	// RepeatPolicy selects between re-invoking and reusing repeated calls.
	RepeatPolicy RepeatPolicy

	// LoopThreshold is how many times the same tool call (name + args)
	// may be seen before the run fails with ErrLoopDetected.
	// Zero disables the check.
	LoopThreshold int

	// MaxArgumentBytes caps the reconstructed argument payload of one call.
	MaxArgumentBytes int

	// CompactAfter is the number of tool records above which older
	// records are folded into a single summary message; CompactKeep is how
	// many of the most recent records are replayed verbatim.
	CompactAfter int
	CompactKeep  int
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.RepeatPolicy == "" {
		c.RepeatPolicy = RepeatReinvoke
	}
	if c.MaxArgumentBytes <= 0 {
		c.MaxArgumentBytes = DefaultMaxArgumentBytes
	}
	if c.CompactAfter <= 0 {
		c.CompactAfter = DefaultCompactAfter
	}
	if c.CompactKeep <= 0 || c.CompactKeep > c.CompactAfter {
		c.CompactKeep = min(DefaultCompactKeep, c.CompactAfter)
	}
	return c
}

// forRequest applies the per-run overrides carried by req.
func (c LoopConfig) forRequest(req Request) LoopConfig {
	if req.MaxIterations > 0 {
		c.MaxIterations = req.MaxIterations
	}
	if req.BreakIfError != nil {
		c.BreakIfError = *req.BreakIfError
	}
	if req.SystemPrompt != "" {
		c.Prefix = req.SystemPrompt
	}
	return c
}
