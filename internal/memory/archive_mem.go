package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryRunArchive is a thread-safe, in-memory implementation of
// RunArchive. Search uses case-insensitive substring matching.
type InMemoryRunArchive struct {
	mu    sync.RWMutex
	runs  []RunRecord
	index map[string]int // run id → index in runs
}

// NewInMemoryRunArchive creates an empty archive.
func NewInMemoryRunArchive() *InMemoryRunArchive {
	return &InMemoryRunArchive{index: make(map[string]int)}
}

// Compile-time interface check.
var _ RunArchive = (*InMemoryRunArchive)(nil)

// Save stores or replaces a run.
func (a *InMemoryRunArchive) Save(_ context.Context, rec RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if i, ok := a.index[rec.RunID]; ok {
		a.runs[i] = rec
		return nil
	}
	a.index[rec.RunID] = len(a.runs)
	a.runs = append(a.runs, rec)
	return nil
}

// Get returns a run by ID.
func (a *InMemoryRunArchive) Get(_ context.Context, runID string) (RunRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	i, ok := a.index[runID]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return a.runs[i], nil
}

// List returns up to limit runs of a session, newest first.
func (a *InMemoryRunArchive) List(_ context.Context, sessionID string, limit int) ([]RunRecord, error) {
	return a.collect(limit, func(r *RunRecord) bool {
		return sessionID == "" || r.SessionID == sessionID
	}), nil
}

// Search returns up to limit runs whose input or answer contains query.
func (a *InMemoryRunArchive) Search(_ context.Context, query string, limit int) ([]RunRecord, error) {
	if query == "" {
		return nil, nil
	}
	q := strings.ToLower(query)
	return a.collect(limit, func(r *RunRecord) bool {
		return strings.Contains(strings.ToLower(r.Input), q) ||
			strings.Contains(strings.ToLower(r.Answer), q)
	}), nil
}

// collect walks runs newest first.
func (a *InMemoryRunArchive) collect(limit int, match func(*RunRecord) bool) []RunRecord {
	if limit <= 0 {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []RunRecord
	for i := len(a.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if match(&a.runs[i]) {
			out = append(out, a.runs[i])
		}
	}
	return out
}
