package anthropic

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Defaults for Config. The model is pinned to a dated release.
const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 30 * time.Second
	DefaultKeyEnv    = "ANTHROPIC_API_KEY"
)

// Config selects a Messages API model and the sampling defaults applied
// when a request does not set its own.
type Config struct {
	// APIKey wins over the variable named by APIKeyEnv.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	Model       string            `yaml:"model"`
	BaseURL     string            `yaml:"base_url"`
	Headers     map[string]string `yaml:"headers"`
	MaxTokens   int               `yaml:"max_tokens"`
	Temperature *float64          `yaml:"temperature"`
	TopP        *float64          `yaml:"top_p"`

	// Timeout bounds connection setup and response headers, not the stream.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	c.Model = cmp.Or(c.Model, DefaultModel)
	c.APIKeyEnv = cmp.Or(c.APIKeyEnv, DefaultKeyEnv)
	c.MaxTokens = cmp.Or(c.MaxTokens, DefaultMaxTokens)
	c.Timeout = cmp.Or(c.Timeout, DefaultTimeout)
}

// apiKey returns the configured key or the one found in the environment.
func (c *Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

func (c *Config) validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("provider.anthropic: model must not be empty"))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("provider.anthropic: base_url %q must be an http(s) URL", c.BaseURL))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("provider.anthropic: timeout must not be negative"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.anthropic: max_tokens must not be negative"))
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("provider.anthropic: temperature %g is outside [0, 1]", *t))
	}
	if p := c.TopP; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("provider.anthropic: top_p %g is outside [0, 1]", *p))
	}
	return errors.Join(errs...)
}
