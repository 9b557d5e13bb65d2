package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/flemzord/mcpflow/internal/provider"
)

// Compile-time interface check.
var _ HistoryStore = (*InMemoryHistoryStore)(nil)

// HistoryOption configures an InMemoryHistoryStore.
type HistoryOption func(*InMemoryHistoryStore)

// WithMaxMessages caps every session at n messages, dropping the oldest
// first. Zero keeps everything.
func WithMaxMessages(n int) HistoryOption {
	return func(s *InMemoryHistoryStore) { s.maxMessages = max(n, 0) }
}

// InMemoryHistoryStore keeps session histories in process memory. It is
// used when no memory driver is configured and in tests.
type InMemoryHistoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]provider.LLMMessage
	maxMessages int
}

// NewInMemoryHistoryStore returns an empty store.
func NewInMemoryHistoryStore(opts ...HistoryOption) *InMemoryHistoryStore {
	s := &InMemoryHistoryStore{sessions: make(map[string][]provider.LLMMessage)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements HistoryStore.
func (s *InMemoryHistoryStore) Append(_ context.Context, sessionID string, msgs ...provider.LLMMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.sessions[sessionID], msgs...)
	if s.maxMessages > 0 && len(h) > s.maxMessages {
		// Copy so the dropped prefix can be collected.
		h = slices.Clone(h[len(h)-s.maxMessages:])
	}
	s.sessions[sessionID] = h
	return nil
}

// Recent implements HistoryStore.
func (s *InMemoryHistoryStore) Recent(_ context.Context, sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.sessions[sessionID]
	return slices.Clone(h[max(len(h)-n, 0):]), nil
}

// All implements HistoryStore.
func (s *InMemoryHistoryStore) All(_ context.Context, sessionID string) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions[sessionID]), nil
}

// Purge implements HistoryStore.
func (s *InMemoryHistoryStore) Purge(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len implements HistoryStore.
func (s *InMemoryHistoryStore) Len(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}
