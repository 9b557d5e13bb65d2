// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"errors"
	"sync"

	"github.com/flemzord/mcpflow/internal/provider"
)

// ErrScriptExhausted is returned by ScriptedProvider when Stream is called
// more times than turns were scripted.
var ErrScriptExhausted = errors.New("providertest: no more scripted turns")

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	StreamFunc    func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	ModelNameFunc func() string

	mu          sync.Mutex
	StreamCalls int
}

// Stream delegates to StreamFunc and tracks call count.
func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.mu.Unlock()
	return m.StreamFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc.
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock-model"
	}
	return m.ModelNameFunc()
}

// Turn is one scripted model turn: the chunks delivered in order, then the
// channel is closed. A non-nil StartErr is returned from Stream instead.
// Hold keeps the channel open after the last chunk until ctx is done.
type Turn struct {
	Chunks   []provider.StreamChunk
	StartErr error
	Hold     bool
}

// ScriptedProvider replays scripted turns in order and records every request
// it receives. It is safe for concurrent use.
type ScriptedProvider struct {
	mu       sync.Mutex
	turns    []Turn
	next     int
	requests []provider.CompletionRequest
}

// NewScriptedProvider returns a provider that plays the given turns in order.
func NewScriptedProvider(turns ...Turn) *ScriptedProvider {
	return &ScriptedProvider{turns: turns}
}

// Stream implements provider.Provider.
func (s *ScriptedProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if s.next >= len(s.turns) {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	turn := s.turns[s.next]
	s.next++
	s.mu.Unlock()

	if turn.StartErr != nil {
		return nil, turn.StartErr
	}

	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range turn.Chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
		if turn.Hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// ModelName implements provider.Provider.
func (s *ScriptedProvider) ModelName() string { return "scripted-model" }

// Requests returns a copy of every request received so far.
func (s *ScriptedProvider) Requests() []provider.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.CompletionRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the number of Stream calls made so far.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Text builds a chunk carrying plain content.
func Text(s string) provider.StreamChunk {
	return provider.StreamChunk{Content: s}
}

// CallDelta builds a chunk carrying one tool-call fragment.
func CallDelta(index int, id, name, args string) provider.StreamChunk {
	return provider.StreamChunk{
		ToolCallDeltas: []provider.ToolCallDelta{{Index: index, ID: id, Name: name, Arguments: args}},
	}
}

// SplitArgs returns the fragments of one tool call whose argument text is
// cut into n pieces of near-equal size (fewer when args is shorter than n).
// The first fragment carries id and name.
func SplitArgs(index int, id, name, args string, n int) []provider.StreamChunk {
	n = max(1, min(n, len(args)))
	chunks := []provider.StreamChunk{CallDelta(index, id, name, "")}
	for i := range n {
		start, end := i*len(args)/n, (i+1)*len(args)/n
		if start < end {
			chunks = append(chunks, CallDelta(index, "", "", args[start:end]))
		}
	}
	return chunks
}

// Interface guards.
var (
	_ provider.Provider = (*MockProvider)(nil)
	_ provider.Provider = (*ScriptedProvider)(nil)
)
