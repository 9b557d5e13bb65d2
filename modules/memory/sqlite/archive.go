package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/mcpflow/internal/memory"
)

// runArchive implements memory.RunArchive backed by SQLite with FTS5.
type runArchive struct {
	db *sql.DB
}

const runColumns = `run_id, session_id, input, answer, summary, state, stop_reason,
	iterations, error, steps, tokens, created_at`

// Save stores or replaces a run.
func (a *runArchive) Save(ctx context.Context, rec memory.RunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	steps := string(rec.Steps)
	if steps == "" {
		steps = "[]"
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SessionID, rec.Input, rec.Answer, rec.Summary, rec.State, rec.StopReason,
		rec.Iterations, rec.Error, steps, rec.Tokens, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save run: %w", err)
	}
	return nil
}

// Get returns a run by ID.
func (a *runArchive) Get(ctx context.Context, runID string) (memory.RunRecord, error) {
	row := a.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.RunRecord{}, memory.ErrRunNotFound
	}
	return rec, err
}

// List returns up to limit runs of a session, newest first.
func (a *runArchive) List(ctx context.Context, sessionID string, limit int) ([]memory.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return a.query(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE ? = '' OR session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		sessionID, sessionID, limit,
	)
}

// Search returns up to limit runs matching query via FTS5, newest first.
func (a *runArchive) Search(ctx context.Context, query string, limit int) ([]memory.RunRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := ftsQuery(query)
	if q == "" {
		return nil, nil
	}
	return a.query(ctx, `
		SELECT `+prefixed("r.", runColumns)+` FROM runs_fts
		JOIN runs r ON r.rowid = runs_fts.rowid
		WHERE runs_fts MATCH ?
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?`,
		q, limit,
	)
}

func (a *runArchive) query(ctx context.Context, q string, args ...any) ([]memory.RunRecord, error) {
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []memory.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: run rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (memory.RunRecord, error) {
	var (
		rec       memory.RunRecord
		steps     string
		createdAt string
	)
	if err := s.Scan(
		&rec.RunID, &rec.SessionID, &rec.Input, &rec.Answer, &rec.Summary, &rec.State, &rec.StopReason,
		&rec.Iterations, &rec.Error, &steps, &rec.Tokens, &createdAt,
	); err != nil {
		return rec, err
	}
	if steps != "" && steps != "[]" {
		rec.Steps = []byte(steps)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

// ftsQuery quotes every whitespace-separated term so user input never
// reaches the FTS5 query syntax. Terms are ANDed.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func prefixed(prefix, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
