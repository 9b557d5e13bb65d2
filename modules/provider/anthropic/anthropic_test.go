package anthropic

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/provider"
)

func configure(t *testing.T, src string) (*Anthropic, error) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatal(err)
	}
	a := &Anthropic{}
	return a, a.Configure(node.Content[0])
}

func TestModule_ConfigureProvision(t *testing.T) {
	t.Setenv("MCPFLOW_TEST_ANTHROPIC_KEY", "sk-ant-test")

	a, err := configure(t, "model: claude-test\napi_key_env: MCPFLOW_TEST_ANTHROPIC_KEY\nheaders: {anthropic-beta: tools-2024}\n")
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if a.config.MaxTokens != DefaultMaxTokens || a.config.Timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", a.config)
	}
	if err := a.Validate(); err == nil {
		t.Error("Validate before Provision should fail")
	}

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	if err := a.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.ModelName() != "claude-test" {
		t.Errorf("ModelName() = %q", a.ModelName())
	}
	if _, err := core.Require[provider.Provider](appCtx, string(ModuleID)); err != nil {
		t.Error(err)
	}
}

func TestModule_APIKey(t *testing.T) {
	t.Setenv(DefaultKeyEnv, "")
	t.Setenv("MCPFLOW_TEST_ANTHROPIC_KEY", "from-env")

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr string
	}{
		{name: "inline wins", src: "api_key: inline\napi_key_env: MCPFLOW_TEST_ANTHROPIC_KEY", want: "inline"},
		{name: "named variable", src: "api_key_env: MCPFLOW_TEST_ANTHROPIC_KEY", want: "from-env"},
		{name: "missing", src: "model: claude-test", wantErr: "$" + DefaultKeyEnv},
		{name: "proxy without key", src: "base_url: http://127.0.0.1:8787"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := configure(t, tt.src)
			if err != nil {
				t.Fatalf("Configure: %v", err)
			}
			if got := a.config.apiKey(); got != tt.want {
				t.Errorf("apiKey() = %q, want %q", got, tt.want)
			}
			if err := a.Provision(core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())); err != nil {
				t.Fatal(err)
			}
			err = a.Validate()
			if tt.wantErr == "" && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Errorf("Validate = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Rejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"negative timeout":    "timeout: -1s",
		"negative max tokens": "max_tokens: -5",
		"hot temperature":     "temperature: 1.5",
		"top_p above one":     "top_p: 1.2",
		"relative base url":   "base_url: /v1",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := configure(t, src); err == nil {
				t.Errorf("Configure(%q) accepted", src)
			}
		})
	}
}

func TestConfig_ZeroValueValidate(t *testing.T) {
	t.Parallel()

	c := Config{Model: "claude-test", Timeout: -time.Second}
	if err := c.validate(); err == nil {
		t.Error("negative timeout accepted")
	}
}
