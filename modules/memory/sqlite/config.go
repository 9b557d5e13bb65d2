package sqlite

import (
	"cmp"
	"errors"
	"fmt"
)

const (
	defaultDBFile        = "mcpflow.db"
	defaultBusyTimeoutMS = 5000
)

// Config configures the memory.sqlite module.
type Config struct {
	// Path defaults to mcpflow.db in the data directory.
	Path string `yaml:"path"`

	// WAL turns on write-ahead logging. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is how long a writer waits for a lock, in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// ArchiveRuns publishes the run archive. Defaults to true.
	ArchiveRuns *bool `yaml:"archive_runs"`

	// MaxMessages caps the stored history of each session. Older messages
	// are dropped when a session grows past it; zero keeps everything.
	MaxMessages int `yaml:"max_messages"`
}

func (c *Config) defaults() {
	on := true
	c.WAL = cmp.Or(c.WAL, &on)
	c.ArchiveRuns = cmp.Or(c.ArchiveRuns, &on)
	c.BusyTimeout = cmp.Or(c.BusyTimeout, defaultBusyTimeoutMS)
}

// enabled reads an optional switch that defaults to on.
func enabled(b *bool) bool { return b == nil || *b }

func (c *Config) validate() error {
	var errs []error
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout))
	}
	if c.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("sqlite: max_messages must be non-negative, got %d", c.MaxMessages))
	}
	return errors.Join(errs...)
}
