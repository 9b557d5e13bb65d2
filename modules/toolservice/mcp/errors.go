package mcp

import "errors"

var (
	// ErrUnsupportedTransport is returned for an unknown transport name.
	ErrUnsupportedTransport = errors.New("unsupported MCP transport")

	// ErrConnect is returned when a session cannot be established.
	ErrConnect = errors.New("MCP connect failed")

	// ErrCallFailed is returned when a tools/call request fails at the
	// protocol level. In-band tool errors are reported through
	// tool.Output.IsError instead.
	ErrCallFailed = errors.New("MCP tool call failed")
)
