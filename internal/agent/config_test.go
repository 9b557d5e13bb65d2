package agent

import (
	"testing"
	"time"
)

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	defaults := LoopConfig{
		MaxIterations:    DefaultMaxIterations,
		Timeout:          DefaultTimeout,
		ToolTimeout:      DefaultToolTimeout,
		RepeatPolicy:     RepeatReinvoke,
		MaxArgumentBytes: DefaultMaxArgumentBytes,
		CompactAfter:     DefaultCompactAfter,
		CompactKeep:      DefaultCompactKeep,
	}
	with := func(edit func(*LoopConfig)) LoopConfig {
		c := defaults
		edit(&c)
		return c
	}

	tests := []struct {
		name string
		in   LoopConfig
		want LoopConfig
	}{
		{
			name: "zero value",
			want: defaults,
		},
		{
			name: "negative values fall back",
			in:   LoopConfig{MaxIterations: -1, Timeout: -time.Second, MaxArgumentBytes: -4},
			want: defaults,
		},
		{
			name: "explicit values kept",
			in: LoopConfig{
				MaxIterations: 20,
				TokenBudget:   5000,
				Timeout:       10 * time.Minute,
				LoopThreshold: 5,
				RepeatPolicy:  RepeatReuse,
				MaxParallel:   2,
			},
			want: with(func(c *LoopConfig) {
				c.MaxIterations = 20
				c.TokenBudget = 5000
				c.Timeout = 10 * time.Minute
				c.LoopThreshold = 5
				c.RepeatPolicy = RepeatReuse
				c.MaxParallel = 2
			}),
		},
		{
			name: "keep larger than threshold",
			in:   LoopConfig{CompactAfter: 20, CompactKeep: 30},
			want: with(func(c *LoopConfig) { c.CompactAfter = 20 }),
		},
		{
			name: "default keep clamped to small threshold",
			in:   LoopConfig{CompactAfter: 3},
			want: with(func(c *LoopConfig) { c.CompactAfter, c.CompactKeep = 3, 3 }),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.withDefaults(); got != tt.want {
				t.Errorf("withDefaults() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestForRequest(t *testing.T) {
	t.Parallel()

	base := LoopConfig{MaxIterations: 10, Prefix: "base"}.withDefaults()
	yes := true

	tests := []struct {
		name       string
		req        Request
		iterations int
		breakOnErr bool
		prefix     string
	}{
		{name: "no overrides", req: Request{}, iterations: 10, prefix: "base"},
		{name: "iterations", req: Request{MaxIterations: 1}, iterations: 1, prefix: "base"},
		{name: "break on error", req: Request{BreakIfError: &yes}, iterations: 10, breakOnErr: true, prefix: "base"},
		{name: "system prompt", req: Request{SystemPrompt: "override"}, iterations: 10, prefix: "override"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := base.forRequest(tt.req)
			if got.MaxIterations != tt.iterations || got.BreakIfError != tt.breakOnErr || got.Prefix != tt.prefix {
				t.Errorf("forRequest() = {iterations:%d break:%v prefix:%q}, want {%d %v %q}",
					got.MaxIterations, got.BreakIfError, got.Prefix, tt.iterations, tt.breakOnErr, tt.prefix)
			}
		})
	}
	if base.MaxIterations != 10 {
		t.Error("forRequest mutated the base config")
	}
}
