package app

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/config"
	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/telemetry"
	"github.com/flemzord/mcpflow/internal/tool"
)

type wired struct {
	runner   *runner.Runner
	registry *tool.Registry
}

// wireRunner discovers the provider and the tool sources among the loaded
// modules, picks up memory and telemetry services and assembles the
// runner. Must be called after LoadModules and before Start.
func wireRunner(
	app *core.App,
	appCtx *core.AppContext,
	ids []string,
	agentCfg config.AgentConfig,
	logger *slog.Logger,
) (*wired, error) {
	registry := tool.NewRegistry()
	var model provider.Provider

	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if p, ok := mod.(provider.Provider); ok {
			if model != nil {
				return nil, fmt.Errorf("wiring: more than one provider module (%s)", id)
			}
			model = p
			logger.Info("wiring: discovered provider", "module", id, "model", p.ModelName())
		}
		if src, ok := mod.(tool.Source); ok {
			n, err := registry.RegisterSource(src)
			if err != nil {
				return nil, fmt.Errorf("wiring: tools of %s: %w", id, err)
			}
			logger.Info("wiring: registered tool source", "module", id, "tools", n)
		}
	}
	if model == nil {
		return nil, fmt.Errorf("wiring: a provider module is required")
	}

	model = provider.WithRetry(model, agentCfg.RetryPolicy(), logger)

	loop := agent.NewLoop(model, agent.NewDispatcher(registry), agentCfg.LoopConfig())
	loop.SetLogger(logger)
	if o, ok := core.Lookup[agent.Observer](appCtx, telemetry.ObserverService); ok {
		loop.SetObserver(o)
	}

	history, archive := memoryStores(appCtx, logger)
	r, err := runner.New(runner.Config{
		Loop:         loop,
		Registry:     registry,
		History:      history,
		Archive:      archive,
		HistoryLimit: agentCfg.HistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return &wired{runner: r, registry: registry}, nil
}

// inProcessHistoryCap bounds each session of the fallback history store.
const inProcessHistoryCap = 10_000

// memoryStores returns the stores published by a memory module, falling
// back to process-local ones.
func memoryStores(appCtx *core.AppContext, logger *slog.Logger) (memory.HistoryStore, memory.RunArchive) {
	history, ok := core.Lookup[memory.HistoryStore](appCtx, memory.HistoryService)
	if !ok {
		logger.Info("wiring: no memory module, history is kept in process")
		history = memory.NewInMemoryHistoryStore(memory.WithMaxMessages(inProcessHistoryCap))
	}
	archive, ok := core.Lookup[memory.RunArchive](appCtx, memory.ArchiveService)
	if !ok {
		archive = memory.NewInMemoryRunArchive()
	}
	return history, archive
}
