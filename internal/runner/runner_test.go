package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/provider/providertest"
	"github.com/flemzord/mcpflow/internal/tool"
	"github.com/flemzord/mcpflow/internal/tool/tooltest"
)

func sumTool() tool.Tool {
	return tooltest.Func("sum", func(_ context.Context, raw json.RawMessage) (tool.Output, error) {
		var a struct{ A, B int }
		if err := json.Unmarshal(raw, &a); err != nil {
			return tool.Output{}, err
		}
		return tool.Output{Content: fmt.Sprint(a.A + a.B)}, nil
	})
}

type fixture struct {
	provider *providertest.ScriptedProvider
	history  *memory.InMemoryHistoryStore
	archive  *memory.InMemoryRunArchive
	runner   *Runner
}

func newFixture(t *testing.T, turns ...providertest.Turn) *fixture {
	t.Helper()
	reg := tool.NewRegistry()
	if err := reg.Register(sumTool()); err != nil {
		t.Fatal(err)
	}
	p := providertest.NewScriptedProvider(turns...)
	f := &fixture{
		provider: p,
		history:  memory.NewInMemoryHistoryStore(),
		archive:  memory.NewInMemoryRunArchive(),
	}
	r, err := New(Config{
		Loop:         agent.NewLoop(p, agent.NewDispatcher(reg), agent.LoopConfig{MaxIterations: 5}),
		Registry:     reg,
		History:      f.history,
		Archive:      f.archive,
		HistoryLimit: 50,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.runner = r
	return f
}

func textTurn(s string) providertest.Turn {
	return providertest.Turn{Chunks: []provider.StreamChunk{providertest.Text(s)}}
}

func sumTurn() providertest.Turn {
	return providertest.Turn{Chunks: []provider.StreamChunk{providertest.CallDelta(0, "call_1", "sum", `{"a":3,"b":5}`)}}
}

func TestNew_RequiresLoopAndRegistry(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Registry: tool.NewRegistry()}); err == nil {
		t.Error("expected error without loop")
	}
	loop := agent.NewLoop(providertest.NewScriptedProvider(), agent.NewDispatcher(tool.NewRegistry()), agent.LoopConfig{})
	if _, err := New(Config{Loop: loop}); err == nil {
		t.Error("expected error without registry")
	}
}

func TestRun_RecordsHistoryAndArchive(t *testing.T) {
	t.Parallel()
	f := newFixture(t, sumTurn(), textTurn("the sum is 8"))
	ctx := context.Background()

	resp, err := f.runner.Run(ctx, Request{SessionID: "s1", Input: "add 3 and 5"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Answer != "the sum is 8" {
		t.Errorf("Answer = %q", resp.Answer)
	}

	msgs, err := f.history.All(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("history = %d messages, want 4: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != provider.MessageRoleUser || msgs[0].Content != "add 3 and 5" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != provider.MessageRoleAssistant || len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].Name != "sum" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Role != provider.MessageRoleTool || msgs[2].Content != "8" || msgs[2].ToolID != "call_1" {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
	if msgs[3].Role != provider.MessageRoleAssistant || msgs[3].Content != "the sum is 8" {
		t.Errorf("msgs[3] = %+v", msgs[3])
	}

	rec, err := f.archive.Get(ctx, resp.RunID)
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if rec.SessionID != "s1" || rec.State != string(agent.StateDone) || rec.Iterations != 1 {
		t.Errorf("record = %+v", rec)
	}
	var steps []Step
	if err := json.Unmarshal(rec.Steps, &steps); err != nil {
		t.Fatalf("steps: %v", err)
	}
	var calls int
	for _, s := range steps {
		if s.Kind == agent.StepKindToolCall {
			calls++
			if s.Tool != "sum" || s.Output != "8" || s.CallID != "call_1" {
				t.Errorf("step = %+v", s)
			}
		}
	}
	if calls != 1 {
		t.Errorf("archived tool calls = %d, want 1", calls)
	}
}

func TestRun_ReplaysSessionHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, textTurn("first"), textTurn("second"))
	ctx := context.Background()

	if _, err := f.runner.Run(ctx, Request{SessionID: "s1", Input: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.runner.Run(ctx, Request{SessionID: "s1", Input: "two"}); err != nil {
		t.Fatal(err)
	}

	reqs := f.provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider calls = %d", len(reqs))
	}
	var sawPrior bool
	for _, m := range reqs[1].Messages {
		if m.Role == provider.MessageRoleUser && m.Content == "one" {
			sawPrior = true
		}
	}
	if !sawPrior {
		t.Errorf("second run context lacks prior input: %+v", reqs[1].Messages)
	}
}

func TestRun_NoSessionSkipsHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, textTurn("hi"))
	ctx := context.Background()

	resp, err := f.runner.Run(ctx, Request{Input: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := f.history.Len(ctx, ""); n != 0 {
		t.Errorf("history len = %d, want 0", n)
	}
	if _, err := f.archive.Get(ctx, resp.RunID); err != nil {
		t.Errorf("run should still be archived: %v", err)
	}
}

func TestRun_FailedRunArchivedNotRemembered(t *testing.T) {
	t.Parallel()
	f := newFixture(t, providertest.Turn{StartErr: provider.ErrProviderDown})
	ctx := context.Background()

	resp, err := f.runner.Run(ctx, Request{SessionID: "s1", Input: "hello"})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("err = %v, want ErrProviderDown", err)
	}
	if n, _ := f.history.Len(ctx, "s1"); n != 0 {
		t.Errorf("history len = %d, want 0", n)
	}
	rec, gerr := f.archive.Get(ctx, resp.RunID)
	if gerr != nil {
		t.Fatalf("archive Get: %v", gerr)
	}
	if rec.State != string(agent.StateFailed) || rec.Error == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestStream_NotRestartable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, textTurn("once"))

	seq := f.runner.Stream(context.Background(), Request{Input: "x"})
	for range seq {
	}
	var last agent.StreamEvent
	for ev := range seq {
		last = ev
	}
	if last.Type != agent.StreamEventRunFailed || !errors.Is(last.Err, agent.ErrRunConsumed) {
		t.Errorf("second iteration = %+v", last)
	}
}

func TestStream_PersistsBeforeTerminalEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, textTurn("done"))
	ctx := context.Background()

	for ev := range f.runner.Stream(ctx, Request{SessionID: "s1", Input: "x"}) {
		if !ev.Type.Terminal() {
			continue
		}
		if _, err := f.archive.Get(ctx, ev.Final.RunID); err != nil {
			t.Errorf("run not archived when terminal event arrived: %v", err)
		}
		if n, _ := f.history.Len(ctx, "s1"); n != 2 {
			t.Errorf("history len = %d, want 2", n)
		}
	}
}

func TestTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	defs := f.runner.Tools()
	if len(defs) != 1 || defs[0].Name != "sum" {
		t.Errorf("Tools() = %+v", defs)
	}
}
