package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/mcpflow/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Stores bundles the history store and run archive sharing one database.
type Stores struct {
	DB      *sql.DB
	History memory.HistoryStore
	Archive memory.RunArchive
}

// Close closes the underlying database.
func (s *Stores) Close() error {
	return s.DB.Close()
}

// Open opens (creating if needed) the SQLite database described by cfg and
// migrates its schema.
//
// The pool is limited to a single connection: SQLite serialises writes and
// the PRAGMAs below are per connection.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	db.SetMaxOpenConns(1)

	if enabled(cfg.WAL) {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Stores{
		DB:      db,
		History: &historyStore{db: db, maxMessages: cfg.MaxMessages},
		Archive: &runArchive{db: db},
	}, nil
}
