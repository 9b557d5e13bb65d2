// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for mcpflow.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/provider"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the directory used for persistent module data.
	DataDir string `yaml:"data_dir,omitempty"`

	// Agent configures the tool-calling loop.
	Agent AgentConfig `yaml:"agent"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.openai").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// AgentConfig is the YAML form of agent.LoopConfig plus the settings the
// runner applies around each loop run.
type AgentConfig struct {
	Prefix           string             `yaml:"prefix"`
	MaxIterations    int                `yaml:"max_iterations"`
	BreakIfError     bool               `yaml:"break_if_error"`
	TokenBudget      int                `yaml:"token_budget"`
	Timeout          time.Duration      `yaml:"timeout"`
	ToolTimeout      time.Duration      `yaml:"tool_timeout"`
	MaxParallel      int                `yaml:"max_parallel"`
	RepeatPolicy     agent.RepeatPolicy `yaml:"repeat_policy"`
	LoopThreshold    int                `yaml:"loop_threshold"`
	MaxArgumentBytes int                `yaml:"max_argument_bytes"`
	CompactAfter     int                `yaml:"compact_after"`
	CompactKeep      int                `yaml:"compact_keep"`

	// HistoryLimit is how many stored conversation messages are replayed
	// into each run of a session. Zero disables history.
	HistoryLimit int `yaml:"history_limit"`

	// ProviderRetries is how many times opening a model stream is retried
	// after a rate limit or outage, waiting ProviderBackoff (growing) in
	// between.
	ProviderRetries int           `yaml:"provider_retries"`
	ProviderBackoff time.Duration `yaml:"provider_backoff"`
}

// RetryPolicy converts the retry settings for provider.WithRetry.
func (a AgentConfig) RetryPolicy() provider.RetryPolicy {
	return provider.RetryPolicy{Retries: a.ProviderRetries, Backoff: a.ProviderBackoff}
}

// LoopConfig converts the YAML section into the loop's configuration.
// Zero fields are left for the loop to default.
func (a AgentConfig) LoopConfig() agent.LoopConfig {
	return agent.LoopConfig{
		Prefix:           a.Prefix,
		MaxIterations:    a.MaxIterations,
		BreakIfError:     a.BreakIfError,
		TokenBudget:      a.TokenBudget,
		Timeout:          a.Timeout,
		ToolTimeout:      a.ToolTimeout,
		MaxParallel:      a.MaxParallel,
		RepeatPolicy:     a.RepeatPolicy,
		LoopThreshold:    a.LoopThreshold,
		MaxArgumentBytes: a.MaxArgumentBytes,
		CompactAfter:     a.CompactAfter,
		CompactKeep:      a.CompactKeep,
	}
}
