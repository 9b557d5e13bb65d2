// Package mcp implements the toolservice.mcp module: it connects to Model
// Context Protocol servers over SSE, streamable HTTP or stdio and exposes
// each remote tool as a tool.Tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/mcpflow/internal/tool"
)

// clientName is announced to servers during initialization.
const clientName = "mcpflow"

// Client is the subset of the mcp-go client a Session uses.
type Client interface {
	Initialize(ctx context.Context, req mcpgo.InitializeRequest) (*mcpgo.InitializeResult, error)
	ListTools(ctx context.Context, req mcpgo.ListToolsRequest) (*mcpgo.ListToolsResult, error)
	CallTool(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)
	Close() error
}

var _ Client = (*mcpclient.Client)(nil)

// Session is an initialized connection to one MCP server. It is safe for
// concurrent use: every tool from the server shares it.
type Session struct {
	name       string
	toolPrefix string
	client     Client
	logger     *slog.Logger
	server     mcpgo.Implementation
}

// Connect dials the server described by cfg, starts its transport and
// performs the MCP initialize handshake.
func Connect(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (*Session, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, cfg.Name, err)
	}

	// The stdio client starts its subprocess on construction. The others
	// keep a long-lived stream open, which must outlive ctx.
	if cfg.Transport != TransportStdio {
		if err := c.Start(context.WithoutCancel(ctx)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: %s: starting transport: %w", ErrConnect, cfg.Name, err)
		}
	}

	s, err := NewSession(ctx, cfg.Name, c, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	s.toolPrefix = cfg.ToolPrefix
	return s, nil
}

func newClient(cfg ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case TransportSSE:
		return mcpclient.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
	case TransportStreamableHTTP:
		return mcpclient.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	case TransportStdio:
		return mcpclient.NewStdioMCPClient(cfg.Command, environ(cfg.Env), cfg.Args...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, cfg.Transport)
	}
}

// environ flattens env into KEY=VALUE pairs in a stable order.
func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}

// NewInProcessSession connects to an MCP server running in the same process.
func NewInProcessSession(ctx context.Context, name string, srv *server.MCPServer, logger *slog.Logger) (*Session, error) {
	c, err := mcpclient.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %s: starting transport: %w", ErrConnect, name, err)
	}
	s, err := NewSession(ctx, name, c, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return s, nil
}

// NewSession performs the initialize handshake on an already started client.
func NewSession(ctx context.Context, name string, c Client, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var req mcpgo.InitializeRequest
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: "1"}

	res, err := c.Initialize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: initialize: %w", ErrConnect, name, err)
	}

	s := &Session{
		name:   name,
		client: c,
		logger: logger.With("mcp_server", name),
		server: res.ServerInfo,
	}
	s.logger.Info("mcp session initialized",
		"server_name", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
	)
	return s, nil
}

// Name returns the configured server name.
func (s *Session) Name() string { return s.name }

// Tools lists every tool the server exposes, following pagination.
func (s *Session) Tools(ctx context.Context) ([]tool.Tool, error) {
	var (
		out []tool.Tool
		req mcpgo.ListToolsRequest
	)
	for {
		res, err := s.client.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: listing tools: %w", ErrConnect, s.name, err)
		}
		for _, t := range res.Tools {
			out = append(out, s.newRemoteTool(t))
		}
		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}
	s.logger.Debug("mcp tools listed", "count", len(out))
	return out, nil
}

// Close terminates the session and its transport.
func (s *Session) Close() error {
	return s.client.Close()
}

func (s *Session) newRemoteTool(t mcpgo.Tool) *remoteTool {
	schema := t.RawInputSchema
	if len(schema) == 0 {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			raw = json.RawMessage(`{"type":"object"}`)
		}
		schema = raw
	}
	return &remoteTool{
		session:     s,
		name:        s.toolPrefix + t.Name,
		remoteName:  t.Name,
		description: t.Description,
		schema:      schema,
	}
}
