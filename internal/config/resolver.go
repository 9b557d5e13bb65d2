package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/mcpflow/internal/core"
)

// layers orders module namespaces so that every module starts after the
// services it resolves and stops before them. Unlisted namespaces (gateway,
// schedule) consume the runner and come last.
var layers = map[string]int{
	"telemetry":   0,
	"memory":      1,
	"provider":    2,
	"toolservice": 3,
}

func layer(id string) int {
	if l, ok := layers[core.ModuleID(id).Namespace()]; ok {
		return l
	}
	return len(layers)
}

// Resolve returns the configured module IDs in load order: by layer, then
// by name. The order is deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(layer(a), layer(b)), cmp.Compare(a, b))
	})
	return ids
}
