package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations run in order. The database's user_version holds the number
// already applied, so each runs exactly once.
var migrations = [][]string{
	// 1: conversation history.
	{
		`CREATE TABLE messages (
			session_id TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			role       TEXT    NOT NULL,
			content    TEXT    NOT NULL DEFAULT '',
			name       TEXT    NOT NULL DEFAULT '',
			tool_id    TEXT    NOT NULL DEFAULT '',
			tool_calls TEXT    NOT NULL DEFAULT '[]',
			is_error   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (session_id, seq)
		)`,
	},
	// 2: run archive, searchable on input and answer.
	{
		`CREATE TABLE runs (
			run_id      TEXT PRIMARY KEY,
			session_id  TEXT    NOT NULL DEFAULT '',
			input       TEXT    NOT NULL DEFAULT '',
			answer      TEXT    NOT NULL DEFAULT '',
			summary     TEXT    NOT NULL DEFAULT '',
			state       TEXT    NOT NULL,
			stop_reason TEXT    NOT NULL DEFAULT '',
			iterations  INTEGER NOT NULL DEFAULT 0,
			error       TEXT    NOT NULL DEFAULT '',
			steps       TEXT    NOT NULL DEFAULT '[]',
			tokens      INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		)`,
		`CREATE INDEX runs_by_session ON runs(session_id, created_at)`,
		`CREATE VIRTUAL TABLE runs_fts USING fts5(input, answer, content=runs, content_rowid=rowid)`,
		`CREATE TRIGGER runs_fts_insert AFTER INSERT ON runs BEGIN
			INSERT INTO runs_fts(rowid, input, answer) VALUES (new.rowid, new.input, new.answer);
		END`,
		`CREATE TRIGGER runs_fts_delete AFTER DELETE ON runs BEGIN
			INSERT INTO runs_fts(runs_fts, rowid, input, answer) VALUES ('delete', old.rowid, old.input, old.answer);
		END`,
		`CREATE TRIGGER runs_fts_update AFTER UPDATE ON runs BEGIN
			INSERT INTO runs_fts(runs_fts, rowid, input, answer) VALUES ('delete', old.rowid, old.input, old.answer);
			INSERT INTO runs_fts(rowid, input, answer) VALUES (new.rowid, new.input, new.answer);
		END`,
	},
}

// schemaVersion reads the number of applied migrations.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}
	return v, nil
}

// migrate applies the migrations the database has not seen yet. A database
// written by a newer binary is refused rather than modified.
func migrate(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("sqlite: schema version %d is newer than supported version %d", current, len(migrations))
	}
	for v := current + 1; v <= len(migrations); v++ {
		if err := applyMigration(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range migrations[version-1] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %d: %w", version, err)
		}
	}
	// PRAGMA statements take no bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("sqlite: migration %d: record version: %w", version, err)
	}
	return tx.Commit()
}
