// Package memory provides conversation history and run archive interfaces
// with in-memory implementations. Persistent drivers live under
// modules/memory.
package memory

import (
	"context"

	"github.com/flemzord/mcpflow/internal/provider"
)

// Service names under which memory drivers publish their stores.
const (
	HistoryService = "memory.history"
	ArchiveService = "memory.archive"
)

// HistoryStore keeps the conversation of each session. Messages are kept
// in append order. Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append adds messages to the end of the session's history.
	Append(ctx context.Context, sessionID string, msgs ...provider.LLMMessage) error

	// Recent returns the n most recent messages in chronological order.
	// If fewer than n messages exist, all messages are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]provider.LLMMessage, error)

	// All returns every message of the session in chronological order.
	All(ctx context.Context, sessionID string) ([]provider.LLMMessage, error)

	// Purge removes the session's history.
	Purge(ctx context.Context, sessionID string) error

	// Len returns the number of messages stored for a session.
	Len(ctx context.Context, sessionID string) (int, error)
}
