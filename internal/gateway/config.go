package gateway

import (
	"cmp"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/flemzord/mcpflow/internal/security"
)

const (
	defaultBind            = "127.0.0.1:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config is the gateway module section.
type Config struct {
	Bind   string               `yaml:"bind"`
	Auth   AuthConfig           `yaml:"auth"`
	Limits security.LimitConfig `yaml:"limits"`

	// Webhooks maps a source name to its signing secret and payload
	// mapping. Each source is served at POST /v1/webhooks/{source}.
	Webhooks map[string]WebhookConfig `yaml:"webhooks"`

	MaxBodyBytes int `yaml:"max_body_bytes"`
	MaxBodyDepth int `yaml:"max_body_depth"`

	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout applies to non-streaming endpoints only. Streamed runs
	// are bounded by the agent timeout.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	c.Bind = cmp.Or(c.Bind, defaultBind)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = security.DefaultMaxPayloadBytes
	}
	if c.MaxBodyDepth <= 0 {
		c.MaxBodyDepth = security.DefaultMaxPayloadDepth
	}
	c.ReadTimeout = positive(c.ReadTimeout, defaultReadTimeout)
	c.WriteTimeout = positive(c.WriteTimeout, defaultWriteTimeout)
	c.ShutdownTimeout = positive(c.ShutdownTimeout, defaultShutdownTimeout)
	for name, wh := range c.Webhooks {
		wh.Input = cmp.Or(wh.Input, "input")
		c.Webhooks[name] = wh
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	}
	if c.Limits.RunsPerMinute < 0 || c.Limits.MaxConcurrent < 0 {
		errs = append(errs, errors.New("gateway: limits must not be negative"))
	}
	if err := c.Auth.validate(); err != nil {
		errs = append(errs, err)
	}
	for name, wh := range c.Webhooks {
		if wh.Secret == "" {
			errs = append(errs, fmt.Errorf("gateway: webhook %q requires a secret", name))
		}
	}
	return errors.Join(errs...)
}

// AuthConfig guards the /v1 API. Any listed bearer token is accepted, so
// tokens can be rotated without downtime.
type AuthConfig struct {
	BearerToken string   `yaml:"bearer_token"`
	Tokens      []string `yaml:"tokens"`
	BasicUser   string   `yaml:"basic_user"`
	BasicPass   string   `yaml:"basic_pass"`
}

func (a AuthConfig) validate() error {
	if (a.BasicUser == "") != (a.BasicPass == "") {
		return errors.New("gateway: basic auth needs both basic_user and basic_pass")
	}
	for i, tok := range a.Tokens {
		if tok == "" {
			return fmt.Errorf("gateway: auth.tokens[%d] is empty", i)
		}
	}
	return nil
}

// bearerTokens returns every accepted token.
func (a AuthConfig) bearerTokens() []string {
	if a.BearerToken == "" {
		return a.Tokens
	}
	return append([]string{a.BearerToken}, a.Tokens...)
}

// WebhookConfig describes one webhook source. Input and Session are gjson
// paths into the delivered payload.
type WebhookConfig struct {
	Secret  string `yaml:"secret"`
	Input   string `yaml:"input"`
	Session string `yaml:"session"`
	// Prompt is prepended to the extracted input.
	Prompt string `yaml:"prompt"`
}
