// Package openai streams chat completions from the OpenAI Chat Completions
// API (or any compatible endpoint) and forwards text and tool-call fragments
// as provider stream chunks.
package openai

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/flemzord/mcpflow/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

// Provider implements provider.Provider over the OpenAI streaming API.
type Provider struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// New applies defaults to cfg, validates it and creates a Provider.
//
// The client has no overall timeout: that would cut long streams. The
// configured timeout bounds dialing and the wait for response headers, and
// the request context bounds the rest.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.Timeout}).DialContext
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Provider{
		config: cfg,
		logger: logger.With("provider", "openai", "model", cfg.Model),
		client: &http.Client{Transport: transport},
	}, nil
}

// ModelName returns the configured model identifier.
func (p *Provider) ModelName() string {
	return p.config.Model
}
