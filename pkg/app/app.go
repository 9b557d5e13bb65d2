// Package app assembles an mcpflow runtime from configuration: it loads the
// configured modules, builds the tool registry and the agent loop from them
// and publishes the runner for the gateway. The CLI commands are thin
// wrappers around it.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/flemzord/mcpflow/internal/config"
	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/security"
	"github.com/flemzord/mcpflow/internal/tool"
)

// ConfigEnv names the environment variable that points at the
// configuration file when no path is given explicitly.
const ConfigEnv = "MCPFLOW_CONFIG"

// ErrNoConfig is returned when no configuration file can be found.
var ErrNoConfig = errors.New("no configuration file found")

// Options configures Load and Build.
type Options struct {
	// ConfigPath is the YAML file to load. Empty means ResolveConfigPath.
	ConfigPath string

	// DataDir overrides data_dir from the configuration.
	DataDir string

	// LogLevel and LogFormat shape the logger Load builds.
	LogLevel  slog.Level
	LogFormat string

	// Logger is used by Build as is. Load replaces it.
	Logger *slog.Logger
}

// Runtime is a loaded application. Modules are provisioned but not started.
type Runtime struct {
	Config   *config.Config
	App      *core.App
	Runner   *runner.Runner
	Registry *tool.Registry
	Logger   *slog.Logger
}

// Load finds, parses and validates the configuration and builds the
// runtime with a redacting logger.
func Load(opts Options) (*Runtime, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = ResolveConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if opts.Logger, err = NewLogger(cfg, opts.LogLevel, opts.LogFormat); err != nil {
		return nil, err
	}
	opts.Logger.Debug("configuration loaded", "path", path)
	return Build(cfg, opts)
}

// Build loads every configured module and wires the runner. Modules that
// were loaded are stopped again when wiring fails.
func Build(cfg *config.Config, opts Options) (*Runtime, error) {
	logger := cmp.Or(opts.Logger, slog.New(slog.DiscardHandler))
	dataDir := cmp.Or(opts.DataDir, cfg.DataDir, DefaultDataDir())

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	// Tool services connect in Provision and the gateway looks the runner
	// up in Start, so wiring sits between the two.
	w, err := wireRunner(application, appCtx, ids, cfg.Agent, logger)
	if err != nil {
		application.Stop()
		return nil, err
	}
	appCtx.RegisterService(runner.Service, w.runner)

	return &Runtime{
		Config:   cfg,
		App:      application,
		Runner:   w.runner,
		Registry: w.registry,
		Logger:   logger,
	}, nil
}

// Close stops every module, waiting at most core.ShutdownTimeout.
func (rt *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), core.ShutdownTimeout)
	defer cancel()
	return rt.App.Shutdown(ctx)
}

// Serve starts all modules and blocks until ctx is done or the process
// is interrupted, then stops them.
func (rt *Runtime) Serve(ctx context.Context) error {
	ctx, stop := SignalContext(ctx)
	defer stop()
	return rt.App.Run(ctx)
}

// SignalContext is canceled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmp.Or(parent, context.Background()), os.Interrupt, syscall.SIGTERM)
}

// NewLogger builds the process logger writing text or json records to
// stderr. Secrets found in cfg are masked in every record.
func NewLogger(cfg *config.Config, level slog.Level, format string) (*slog.Logger, error) {
	redactor := security.NewRedactor()
	if cfg != nil {
		for id := range cfg.Modules {
			node := cfg.Modules[id]
			redactor.AddLiteral(security.ConfigSecrets(&node)...)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch format {
	case "", "text":
		inner = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		inner = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// configCandidates lists where ResolveConfigPath looks, in order.
func configCandidates() []string {
	var out []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		out = append(out, filepath.Join(xdg, "mcpflow", "mcpflow.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", "mcpflow", "mcpflow.yaml"))
	}
	return append(out, "mcpflow.yaml")
}

// ResolveConfigPath returns $MCPFLOW_CONFIG when set. Otherwise it returns
// the first existing file among $XDG_CONFIG_HOME/mcpflow/mcpflow.yaml (or
// ~/.config/mcpflow/mcpflow.yaml) and ./mcpflow.yaml.
func ResolveConfigPath() (string, error) {
	if path := os.Getenv(ConfigEnv); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrNoConfig, ConfigEnv, err)
		}
		return path, nil
	}

	candidates := configCandidates()
	i := slices.IndexFunc(candidates, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
	if i < 0 {
		return "", fmt.Errorf("%w (searched: %s)", ErrNoConfig, strings.Join(candidates, ", "))
	}
	return candidates[i], nil
}

// DefaultDataDir is $XDG_DATA_HOME/mcpflow, or ~/.local/share/mcpflow.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "mcpflow")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mcpflow")
}
