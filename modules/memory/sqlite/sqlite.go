// Package sqlite implements the memory.sqlite module: conversation history
// and the run archive in one SQLite database. It uses modernc.org/sqlite
// (pure Go, no CGO); archived runs are searchable through FTS5.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/memory"
)

// Service names published on the AppContext.
const (
	HistoryService = memory.HistoryService
	ArchiveService = memory.ArchiveService
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ memory.HistoryStore = (*historyStore)(nil)
	_ memory.RunArchive   = (*runArchive)(nil)
	_ core.Configurable   = (*Module)(nil)
	_ core.Provisioner    = (*Module)(nil)
	_ core.Validator      = (*Module)(nil)
	_ core.Stopper        = (*Module)(nil)
)

// Module opens the database during Provision and publishes its stores.
// The archive is only published when archive_runs is on; the runner then
// falls back to its in-process archive.
type Module struct {
	config Config
	stores *Stores
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	stores, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.stores = stores

	ctx.RegisterService(HistoryService, stores.History)
	if enabled(m.config.ArchiveRuns) {
		ctx.RegisterService(ArchiveService, stores.Archive)
	}
	m.logger.Info("sqlite memory opened",
		"path", m.config.Path,
		"wal", enabled(m.config.WAL),
		"archive", enabled(m.config.ArchiveRuns),
		"max_messages", m.config.MaxMessages,
	)
	return nil
}

// Validate implements core.Validator. It checks that the schema is current
// and that the FTS5 index answers queries.
func (m *Module) Validate() error {
	ctx := context.Background()
	v, err := schemaVersion(ctx, m.stores.DB)
	if err != nil {
		return err
	}
	if v != len(migrations) {
		return fmt.Errorf("sqlite: schema version %d, want %d", v, len(migrations))
	}
	var n int
	if err := m.stores.DB.QueryRowContext(ctx, "SELECT count(*) FROM runs_fts").Scan(&n); err != nil {
		return fmt.Errorf("sqlite: FTS5 not available: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.stores == nil {
		return nil
	}
	m.logger.Info("sqlite memory closing")
	return m.stores.Close()
}

// History returns the history store.
func (m *Module) History() memory.HistoryStore {
	return m.stores.History
}

// Archive returns the run archive.
func (m *Module) Archive() memory.RunArchive {
	return m.stores.Archive
}
