package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRunNotFound indicates the requested run is not archived.
var ErrRunNotFound = errors.New("memory: run not found")

// RunRecord is the archived outcome of one run.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	SessionID  string          `json:"session_id,omitempty"`
	Input      string          `json:"input"`
	Answer     string          `json:"answer"`
	Summary    string          `json:"summary"`
	State      string          `json:"state"`
	StopReason string          `json:"stop_reason"`
	Iterations int             `json:"iterations"`
	Error      string          `json:"error,omitempty"`
	Steps      json.RawMessage `json:"steps,omitempty"`
	Tokens     int             `json:"tokens"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunArchive persists terminal runs for later inspection.
// Implementations must be safe for concurrent use.
type RunArchive interface {
	// Save stores a run, replacing any record with the same RunID.
	Save(ctx context.Context, rec RunRecord) error

	// Get returns the run with the given ID, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (RunRecord, error)

	// List returns up to limit runs of a session, newest first. An empty
	// sessionID lists runs across all sessions.
	List(ctx context.Context, sessionID string, limit int) ([]RunRecord, error)

	// Search returns up to limit runs whose input or answer matches query.
	Search(ctx context.Context, query string, limit int) ([]RunRecord, error)
}
