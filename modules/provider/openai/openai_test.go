package openai

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/provider"
)

func TestNew_Defaults(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test", Model: "gpt-4o"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if p.config.BaseURL != DefaultBaseURL {
		t.Errorf("base_url = %q, want default", p.config.BaseURL)
	}
	if p.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", p.config.Timeout, DefaultTimeout)
	}
	if p.ModelName() != "gpt-4o" {
		t.Errorf("ModelName() = %q, want gpt-4o", p.ModelName())
	}
}

func TestNew_CustomValues(t *testing.T) {
	temp := 0.2
	p, err := New(Config{
		APIKey:      "sk-test",
		Model:       "llama3",
		BaseURL:     "http://localhost:11434/v1",
		Timeout:     5 * time.Second,
		Temperature: &temp,
	}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if p.config.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("base_url = %q", p.config.BaseURL)
	}
	if p.config.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", p.config.Timeout)
	}
}

func TestNew_LocalEndpointWithoutKey(t *testing.T) {
	p, err := New(Config{Model: "llama3", BaseURL: "http://localhost:11434/v1/"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if p.config.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("base_url = %q, trailing slash should be trimmed", p.config.BaseURL)
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	hot := 3.0
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"missing everything", Config{}, []string{"api_key is required", "model is required"}},
		{"missing model", Config{APIKey: "sk"}, []string{"model is required"}},
		{"negative timeout", Config{APIKey: "sk", Model: "m", Timeout: -time.Second}, []string{"timeout must not be negative"}},
		{"relative base url", Config{Model: "m", BaseURL: "localhost:11434"}, []string{"must be an http(s) URL"}},
		{"temperature range", Config{APIKey: "sk", Model: "m", Temperature: &hot}, []string{"temperature 3 is outside"}},
		{"negative max tokens", Config{APIKey: "sk", Model: "m", MaxTokens: -1}, []string{"max_tokens must not be negative"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q should contain %q", err, w)
				}
			}
		})
	}
}

func TestModule_ConfigureAndProvision(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	raw := "api_key: sk-test\nmodel: gpt-4o-mini\ntimeout: 10s\nbase_url: http://localhost:8080/v1\n"
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m := &Module{}
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if m.config.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", m.config.Timeout)
	}

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	var p provider.Provider = m
	if p.ModelName() != "gpt-4o-mini" {
		t.Errorf("ModelName() = %q", p.ModelName())
	}
	if _, ok := appCtx.Service(string(ModuleID)); !ok {
		t.Error("provider.openai service not registered")
	}
}

func TestModule_ConfigureRejectsMissingKey(t *testing.T) {
	t.Parallel()

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("model: gpt-4o\n"), &node); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	err := (&Module{}).Configure(node.Content[0])
	if err == nil || !strings.Contains(err.Error(), "api_key is required") {
		t.Errorf("Configure() error = %v, want api_key is required", err)
	}
}
