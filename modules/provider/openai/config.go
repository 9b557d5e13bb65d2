package openai

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults for Config.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 30 * time.Second
)

// Config selects a chat completions endpoint and the sampling defaults
// applied when a request does not set its own. Any server speaking the
// OpenAI wire format works through BaseURL (vLLM, Ollama, OpenRouter).
type Config struct {
	APIKey       string            `yaml:"api_key"`
	Model        string            `yaml:"model"`
	BaseURL      string            `yaml:"base_url"`
	Organization string            `yaml:"organization"`
	Headers      map[string]string `yaml:"headers"`
	MaxTokens    int               `yaml:"max_tokens"`
	Temperature  *float64          `yaml:"temperature"`
	TopP         *float64          `yaml:"top_p"`

	// Timeout bounds connection setup and response headers, not the stream.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// validate expects defaults to have run. Self-hosted endpoints often run
// without authentication, so api_key is only required for api.openai.com.
func (c *Config) validate() error {
	var errs []error
	if c.APIKey == "" && c.BaseURL == DefaultBaseURL {
		errs = append(errs, errors.New("provider.openai: api_key is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("provider.openai: model is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("provider.openai: base_url %q must be an http(s) URL", c.BaseURL))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("provider.openai: timeout must not be negative"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("provider.openai: max_tokens must not be negative"))
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("provider.openai: temperature %g is outside [0, 2]", *t))
	}
	if p := c.TopP; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Errorf("provider.openai: top_p %g is outside [0, 1]", *p))
	}
	return errors.Join(errs...)
}
