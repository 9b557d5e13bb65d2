package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/flemzord/mcpflow/modules/toolservice/mcp/calculator"
	"github.com/flemzord/mcpflow/pkg/app"
)

func demoServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Serve the calculator MCP tools (sum, sub, factorial)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			transport, _ := cmd.Flags().GetString("transport")
			srv := calculator.NewServer(version)

			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			switch transport {
			case "stdio":
				return server.ServeStdio(srv)
			case "sse":
				sse := server.NewSSEServer(srv, server.WithBaseURL("http://"+addr))
				fmt.Fprintf(cmd.ErrOrStderr(), "calculator MCP server (sse) on http://%s/sse\n", addr)
				return serveUntilDone(ctx, func() error { return sse.Start(addr) }, sse.Shutdown)
			case "streamable_http":
				h := server.NewStreamableHTTPServer(srv)
				fmt.Fprintf(cmd.ErrOrStderr(), "calculator MCP server (streamable http) on http://%s/mcp\n", addr)
				return serveUntilDone(ctx, func() error { return h.Start(addr) }, h.Shutdown)
			default:
				return fmt.Errorf("unknown transport %q (want sse, streamable_http or stdio)", transport)
			}
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8765", "Listen address for HTTP transports")
	cmd.Flags().String("transport", "sse", "Transport: sse, streamable_http or stdio")
	return cmd
}

// serveUntilDone runs start until it fails or ctx ends, then shuts down.
func serveUntilDone(ctx context.Context, start func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(shutdownCtx)
	}
}
