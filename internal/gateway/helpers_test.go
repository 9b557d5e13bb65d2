package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/core"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/provider/providertest"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/schedule"
	"github.com/flemzord/mcpflow/internal/telemetry"
	"github.com/flemzord/mcpflow/internal/tool"
	"github.com/flemzord/mcpflow/internal/tool/tooltest"
)

type testGateway struct {
	*Gateway
	base    string
	runner  *runner.Runner
	metrics *telemetry.Metrics
}

func textTurn(s string) providertest.Turn {
	return providertest.Turn{Chunks: []provider.StreamChunk{providertest.Text(s)}}
}

func sumTurn(a, b int) providertest.Turn {
	return providertest.Turn{Chunks: []provider.StreamChunk{
		providertest.CallDelta(0, "call_1", "sum", fmt.Sprintf(`{"a":%d,"b":%d}`, a, b)),
	}}
}

func sumTool() tool.Tool {
	return tooltest.Func("sum", func(_ context.Context, raw json.RawMessage) (tool.Output, error) {
		var a struct{ A, B int }
		if err := json.Unmarshal(raw, &a); err != nil {
			return tool.Output{}, err
		}
		return tool.Output{Content: fmt.Sprint(a.A + a.B)}, nil
	})
}

// newTestGateway starts a gateway on a loopback port, backed by a runner
// that plays turns.
func newTestGateway(t *testing.T, cfg Config, turns ...providertest.Turn) *testGateway {
	t.Helper()

	reg := tool.NewRegistry()
	if err := reg.Register(sumTool()); err != nil {
		t.Fatal(err)
	}
	p := providertest.NewScriptedProvider(turns...)
	metrics := telemetry.NewMetrics()
	loop := agent.NewLoop(p, agent.NewDispatcher(reg), agent.LoopConfig{MaxIterations: 5})
	loop.SetObserver(metrics)
	r, err := runner.New(runner.Config{
		Loop:         loop,
		Registry:     reg,
		History:      memory.NewInMemoryHistoryStore(),
		Archive:      memory.NewInMemoryRunArchive(),
		HistoryLimit: 20,
	})
	if err != nil {
		t.Fatal(err)
	}

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	appCtx.RegisterService(runner.Service, r)
	appCtx.RegisterService(telemetry.MetricsService, metrics)
	sched := schedule.NewScheduler(slog.New(slog.DiscardHandler))
	if err := sched.RegisterJob(schedule.NewRunJob(schedule.JobConfig{Name: "nightly", Schedule: "@daily", Input: "report"}, r, nil)); err != nil {
		t.Fatal(err)
	}
	appCtx.RegisterService(schedule.Service, sched)

	cfg.Bind = "127.0.0.1:0"
	g := &Gateway{config: cfg}
	g.config.defaults()
	if err := g.config.validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop(context.Background()) })

	return &testGateway{Gateway: g, base: "http://" + g.Addr().String(), runner: r, metrics: metrics}
}

func (tg *testGateway) do(t *testing.T, method, path, body string, header http.Header) (*http.Response, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, tg.base+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(data)
}

func newBareContext(t *testing.T) *core.AppContext {
	t.Helper()
	return core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
}
