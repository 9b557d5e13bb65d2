package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/provider"
)

func TestOpenCreatesDirectoryAndMigratesTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	s, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.History.Append(ctx, "s1", provider.LLMMessage{Role: provider.MessageRoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	s, err = Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	n, err := s.History.Len(ctx, "s1")
	if err != nil || n != 1 {
		t.Errorf("Len after reopen = %d, %v; want 1", n, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenRejectsNegativeBusyTimeout(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), BusyTimeout: -1})
	if err == nil {
		t.Fatal("expected error for negative busy_timeout")
	}
}

func TestProvisionDefaultsPathToDataDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := &Module{}
	if err := m.Provision(core.NewAppContext(slog.New(slog.DiscardHandler), dir)); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if _, err := os.Stat(filepath.Join(dir, defaultDBFile)); err != nil {
		t.Errorf("default database not created: %v", err)
	}
}

func TestOpenRecordsSchemaVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "v.db")

	s, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := schemaVersion(ctx, s.DB)
	if err != nil || v != len(migrations) {
		t.Fatalf("schema version = %d, %v; want %d", v, err, len(migrations))
	}

	// A database from a newer binary is refused.
	if _, err := s.DB.ExecContext(ctx, "PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s, err := Open(ctx, Config{Path: path}); err == nil {
		_ = s.Close()
		t.Fatal("expected error for a newer schema")
	}
}

func TestHistoryMaxMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "cap.db"), MaxMessages: 3})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	for _, content := range []string{"one", "two", "three", "four"} {
		if err := s.History.Append(ctx, "s1", provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.History.Append(ctx, "s2", provider.LLMMessage{Role: provider.MessageRoleUser, Content: "other"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := s.History.All(ctx, "s1")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	var got []string
	for _, m := range all {
		got = append(got, m.Content)
	}
	if strings.Join(got, ",") != "two,three,four" {
		t.Errorf("history = %v, want the last three messages", got)
	}
	if n, _ := s.History.Len(ctx, "s2"); n != 1 {
		t.Errorf("s2 Len = %d, other sessions must not be trimmed", n)
	}
}
