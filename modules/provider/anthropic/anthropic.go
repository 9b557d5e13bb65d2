// Package anthropic implements the provider.anthropic module, streaming
// completions from the Anthropic Messages API through the official SDK.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/provider"
)

// ModuleID is the provider's configuration key and service name.
const ModuleID core.ModuleID = "provider.anthropic"

func init() {
	core.RegisterModule(&Anthropic{})
}

var (
	_ core.Configurable = (*Anthropic)(nil)
	_ core.Provisioner  = (*Anthropic)(nil)
	_ core.Validator    = (*Anthropic)(nil)
	_ provider.Provider = (*Anthropic)(nil)
)

// Anthropic streams completions from the Messages API.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return fmt.Errorf("provider.anthropic: decode config: %w", err)
	}
	a.config.defaults()
	return a.config.validate()
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.logger = ctx.Logger.With("model", a.config.Model)
	client := sdkanthropic.NewClient(a.requestOptions()...)
	a.client = &client
	ctx.RegisterService(string(ModuleID), a)
	return nil
}

func (a *Anthropic) requestOptions() []option.RequestOption {
	// Dialing and response headers are bounded; an SSE body lives as long
	// as the request context.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: a.config.Timeout}).DialContext
	transport.ResponseHeaderTimeout = a.config.Timeout

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Transport: transport}),
		// Retries are applied around the provider, see provider.WithRetry.
		option.WithMaxRetries(0),
	}
	if key := a.config.apiKey(); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	for name, value := range a.config.Headers {
		opts = append(opts, option.WithHeader(name, value))
	}
	return opts
}

// Validate implements core.Validator. A key is required unless base_url
// points at a proxy that supplies its own.
func (a *Anthropic) Validate() error {
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	if a.config.BaseURL == "" && a.config.apiKey() == "" {
		return fmt.Errorf("provider.anthropic: no api_key and $%s is empty", a.config.APIKeyEnv)
	}
	return a.config.validate()
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}
