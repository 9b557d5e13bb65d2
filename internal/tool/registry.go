package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/mcpflow/internal/provider"
)

// NormalizeName is the canonical form of a tool name: trimmed, with inner
// spaces replaced by underscores. Registration and lookup both apply it.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

type entry struct {
	tool Tool
	def  provider.ToolDefinition
}

// Registry holds the tools of one agent. It is filled while the agent is
// wired and only read afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds t under its normalized name.
func (r *Registry) Register(t Tool) error {
	name := NormalizeName(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.entries[name] = entry{
		tool: t,
		def: provider.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Schema(),
		},
	}
	return nil
}

// RegisterSource adds every tool of src and returns how many were added.
// It stops at the first rejected tool.
func (r *Registry) RegisterSource(src Source) (int, error) {
	tools := src.Tools()
	for i, t := range tools {
		if err := r.Register(t); err != nil {
			return i, err
		}
	}
	return len(tools), nil
}

// Resolve returns the tool registered under the normalized name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	e, ok := r.entries[NormalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return e.tool, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Definitions returns what the model is told about each tool, sorted by
// name so prompts are stable across runs.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.entries))
	for _, name := range slices.Sorted(maps.Keys(r.entries)) {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

type outcome struct {
	out Output
	err error
}

// Invoke runs t with args. A positive timeout bounds the call even when
// the tool ignores its context and yields ErrTimeout; cancellation of ctx
// is returned as is. A panicking tool yields ErrPanicked.
func (r *Registry) Invoke(ctx context.Context, t Tool, args json.RawMessage, timeout time.Duration) (Output, error) {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go execute(callCtx, t, args, done)

	var res outcome
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}
	if res.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Output{}, fmt.Errorf("%w: %s after %s", ErrTimeout, t.Name(), timeout)
	}
	return res.out, res.err
}

// execute reports on done, which must be buffered so an abandoned call
// can still finish.
func execute(ctx context.Context, t Tool, args json.RawMessage, done chan<- outcome) {
	defer func() {
		if p := recover(); p != nil {
			done <- outcome{err: fmt.Errorf("%w: %s: %v", ErrPanicked, t.Name(), p)}
		}
	}()
	out, err := t.Execute(ctx, args)
	done <- outcome{out: out, err: err}
}
