package mcp

import (
	"errors"
	"fmt"
	"time"
)

// Transport selects how a session reaches its MCP server.
type Transport string

// Supported transports.
const (
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable_http"
	TransportStdio          Transport = "stdio"
)

const defaultConnectTimeout = 30 * time.Second

// Config is the toolservice.mcp module configuration.
type Config struct {
	// Servers lists the MCP servers whose tools are registered.
	Servers []ServerConfig `yaml:"servers"`

	// ConnectTimeout bounds connecting, initializing and listing tools
	// for each server. Defaults to 30s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ServerConfig describes one MCP server.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport Transport         `yaml:"transport"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`

	// ToolPrefix is prepended to every tool name from this server, to keep
	// names unique when two servers expose the same tool.
	ToolPrefix string `yaml:"tool_prefix"`
}

func (c *Config) defaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	for i := range c.Servers {
		c.Servers[i].defaults()
	}
}

func (c *ServerConfig) defaults() {
	if c.Transport != "" {
		return
	}
	if c.Command != "" {
		c.Transport = TransportStdio
	} else {
		c.Transport = TransportStreamableHTTP
	}
}

func (c *Config) validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("toolservice.mcp: servers[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("toolservice.mcp: servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true

		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("toolservice.mcp: servers[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (c *ServerConfig) validate() error {
	switch c.Transport {
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("url is required for transport %q", c.Transport)
		}
	case TransportStdio:
		if c.Command == "" {
			return errors.New("command is required for transport \"stdio\"")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedTransport, c.Transport)
	}
	return nil
}
