// Package main is the entry point for the mcpflow CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flemzord/mcpflow/internal/config"
	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string
}

func (g *globals) options() (app.Options, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(g.logLevel))); err != nil {
		return app.Options{}, fmt.Errorf("invalid --log-level %q", g.logLevel)
	}
	return app.Options{
		ConfigPath: g.configPath,
		DataDir:    g.dataDir,
		LogLevel:   level,
		LogFormat:  g.logFormat,
	}, nil
}

// load builds the runtime from the persistent flags.
func (g *globals) load() (*app.Runtime, error) {
	opts, err := g.options()
	if err != nil {
		return nil, err
	}
	return app.Load(opts)
}

func rootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "mcpflow",
		Short:         "A streaming tool-calling agent over MCP tool servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (default $"+app.ConfigEnv+" or the standard locations)")
	flags.StringVar(&g.dataDir, "data-dir", "", "Directory for persistent data")
	flags.StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		versionCmd(),
		runCmd(g),
		serveCmd(g),
		toolsCmd(g),
		configCmd(g),
		demoServerCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mcpflow %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start all configured modules, including the gateway",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			rt, err := g.load()
			if err != nil {
				return err
			}
			defer closeRuntime(rt, &err)
			return rt.Serve(cmd.Context())
		},
	}
}

func toolsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed by the configured tool services",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			rt, err := g.load()
			if err != nil {
				return err
			}
			defer closeRuntime(rt, &err)

			defs := rt.Runner.Tools()
			if len(defs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools registered.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range defs {
				fmt.Fprintf(tw, "%s\t%s\n", d.Name, d.Description)
			}
			return tw.Flush()
		},
	}
}

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and load its modules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) == 1 {
				g.configPath = args[0]
			}
			rt, err := g.load()
			if err != nil {
				return err
			}
			defer closeRuntime(rt, &err)

			out := cmd.OutOrStdout()
			ids := config.Resolve(rt.Config)
			fmt.Fprintf(out, "Configuration OK (%d modules, %d tools)\n", len(ids), rt.Registry.Len())
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// closeRuntime stops rt and reports a shutdown failure unless the command
// already failed.
func closeRuntime(rt *app.Runtime, err *error) {
	if cerr := rt.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("shutdown: %w", cerr)
	}
}
