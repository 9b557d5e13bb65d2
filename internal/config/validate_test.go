package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/core"
)

type stubModule struct{ id core.ModuleID }

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: m.id, New: func() core.Module { return &stubModule{id: m.id} }}
}

func init() {
	for _, id := range []core.ModuleID{"provider.stub_a", "provider.stub_b", "memory.stub", "toolservice.stub"} {
		core.RegisterModule(&stubModule{id: id})
	}
}

func modulesOf(ids ...string) map[string]yaml.Node {
	out := make(map[string]yaml.Node, len(ids))
	for _, id := range ids {
		out[id] = yaml.Node{}
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want []string // substrings of the error; nil means valid
	}{
		{
			name: "provider only",
			cfg:  Config{Version: "1", Modules: modulesOf("provider.stub_a")},
		},
		{
			name: "full stack",
			cfg:  Config{Version: "1", Modules: modulesOf("provider.stub_a", "memory.stub", "toolservice.stub")},
		},
		{
			name: "missing version",
			cfg:  Config{Modules: modulesOf("provider.stub_a")},
			want: []string{"version field is required"},
		},
		{
			name: "unsupported version",
			cfg:  Config{Version: "99", Modules: modulesOf("provider.stub_a")},
			want: []string{"unsupported version \"99\""},
		},
		{
			name: "no modules",
			cfg:  Config{Version: "1"},
			want: []string{"at least one module"},
		},
		{
			name: "unknown modules are all reported",
			cfg:  Config{Version: "1", Modules: modulesOf("provider.stub_a", "bad.one", "bad.two")},
			want: []string{"bad.one", "bad.two"},
		},
		{
			name: "provider required",
			cfg:  Config{Version: "1", Modules: modulesOf("memory.stub")},
			want: []string{"provider module is required", "provider.stub_a, provider.stub_b"},
		},
		{
			name: "single provider",
			cfg:  Config{Version: "1", Modules: modulesOf("provider.stub_a", "provider.stub_b")},
			want: []string{"only one provider"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tt.cfg)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
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

func TestValidate_AgentSection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		agent AgentConfig
		want  []string
	}{
		{"negative iterations", AgentConfig{MaxIterations: -1}, []string{"agent.max_iterations"}},
		{"negative timeouts", AgentConfig{Timeout: -time.Second, ToolTimeout: -time.Second}, []string{"agent.timeout", "agent.tool_timeout"}},
		{"bad repeat policy", AgentConfig{RepeatPolicy: "sometimes"}, []string{"agent.repeat_policy"}},
		{"keep above compact", AgentConfig{CompactAfter: 4, CompactKeep: 6}, []string{"compact_keep"}},
		{"negative history", AgentConfig{HistoryLimit: -3}, []string{"agent.history_limit"}},
		{"negative retries", AgentConfig{ProviderRetries: -1, ProviderBackoff: -time.Second}, []string{"agent.provider_retries", "agent.provider_backoff"}},
		{"reuse policy", AgentConfig{RepeatPolicy: agent.RepeatReuse, MaxIterations: 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{Version: "1", Modules: modulesOf("provider.stub_a"), Agent: tt.agent}
			err := Validate(&cfg)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
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
