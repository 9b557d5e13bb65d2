package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that exactly one
// provider module is configured, and validates the agent section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var providers []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if core.ModuleID(id).Namespace() == "provider" {
			providers = append(providers, id)
		}
	}
	switch {
	case len(cfg.Modules) > 0 && len(providers) == 0:
		errs = append(errs, fmt.Errorf("config: a provider module is required (available: %s)", available("provider")))
	case len(providers) > 1:
		errs = append(errs, fmt.Errorf("config: only one provider module may be configured, got %v", providers))
	}

	errs = append(errs, validateAgent(cfg.Agent)...)

	return errors.Join(errs...)
}

func validateAgent(a AgentConfig) []error {
	var errs []error
	nonNegative := []struct {
		name  string
		value int
	}{
		{"max_iterations", a.MaxIterations},
		{"token_budget", a.TokenBudget},
		{"max_parallel", a.MaxParallel},
		{"loop_threshold", a.LoopThreshold},
		{"max_argument_bytes", a.MaxArgumentBytes},
		{"compact_after", a.CompactAfter},
		{"compact_keep", a.CompactKeep},
		{"history_limit", a.HistoryLimit},
		{"provider_retries", a.ProviderRetries},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("config: agent.%s must not be negative, got %d", f.name, f.value))
		}
	}
	if a.Timeout < 0 {
		errs = append(errs, errors.New("config: agent.timeout must not be negative"))
	}
	if a.ProviderBackoff < 0 {
		errs = append(errs, errors.New("config: agent.provider_backoff must not be negative"))
	}
	if a.ToolTimeout < 0 {
		errs = append(errs, errors.New("config: agent.tool_timeout must not be negative"))
	}
	switch a.RepeatPolicy {
	case "", agent.RepeatReinvoke, agent.RepeatReuse:
	default:
		errs = append(errs, fmt.Errorf("config: agent.repeat_policy must be %q or %q, got %q",
			agent.RepeatReinvoke, agent.RepeatReuse, a.RepeatPolicy))
	}
	if a.CompactAfter > 0 && a.CompactKeep > a.CompactAfter {
		errs = append(errs, fmt.Errorf("config: agent.compact_keep (%d) must not exceed compact_after (%d)",
			a.CompactKeep, a.CompactAfter))
	}
	return errs
}

// available lists the registered modules of a namespace for error messages.
func available(namespace string) string {
	var ids []string
	for _, info := range core.GetModulesByNamespace(namespace) {
		ids = append(ids, string(info.ID))
	}
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
