package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
)

func userMsg(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}
}

// seeded returns a store holding msg-0 .. msg-(n-1) in session s1.
func seeded(t *testing.T, n int, opts ...memory.HistoryOption) *memory.InMemoryHistoryStore {
	t.Helper()
	store := memory.NewInMemoryHistoryStore(opts...)
	for i := range n {
		if err := store.Append(context.Background(), "s1", userMsg(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return store
}

func contents(msgs []provider.LLMMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestInMemoryHistory_Order(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewInMemoryHistoryStore()

	turn := []provider.LLMMessage{
		userMsg("what is 3+5?"),
		{Role: provider.MessageRoleAssistant, ToolCalls: []provider.ToolCall{{ID: "c1", Name: "sum"}}},
		{Role: provider.MessageRoleTool, ToolID: "c1", Content: "8"},
		{Role: provider.MessageRoleAssistant, Content: "8"},
	}
	if err := store.Append(ctx, "s1", turn[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "s1", turn[1:]...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := store.All(ctx, "s1")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != len(turn) {
		t.Fatalf("All returned %d messages, want %d", len(all), len(turn))
	}
	for i := range turn {
		if all[i].Role != turn[i].Role || all[i].ToolID != turn[i].ToolID {
			t.Errorf("All[%d] = %+v, want %+v", i, all[i], turn[i])
		}
	}
}

func TestInMemoryHistory_Recent(t *testing.T) {
	t.Parallel()
	store := seeded(t, 5)

	tests := []struct {
		n    int
		want string
	}{
		{n: 3, want: "[msg-2 msg-3 msg-4]"},
		{n: 5, want: "[msg-0 msg-1 msg-2 msg-3 msg-4]"},
		{n: 10, want: "[msg-0 msg-1 msg-2 msg-3 msg-4]"},
		{n: 0, want: "[]"},
		{n: -1, want: "[]"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			t.Parallel()
			recent, err := store.Recent(context.Background(), "s1", tt.n)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if got := fmt.Sprint(contents(recent)); got != tt.want {
				t.Errorf("Recent(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}

func TestInMemoryHistory_MaxMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seeded(t, 5, memory.WithMaxMessages(3))

	all, _ := store.All(ctx, "s1")
	if got := fmt.Sprint(contents(all)); got != "[msg-2 msg-3 msg-4]" {
		t.Errorf("All = %s, want the three newest", got)
	}

	if err := store.Append(ctx, "s1", userMsg("a"), userMsg("b"), userMsg("c"), userMsg("d")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	all, _ = store.All(ctx, "s1")
	if got := fmt.Sprint(contents(all)); got != "[b c d]" {
		t.Errorf("All = %s, want [b c d]", got)
	}
}

func TestInMemoryHistory_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seeded(t, 2)

	all, _ := store.All(ctx, "s1")
	all[0].Content = "mutated"
	recent, _ := store.Recent(ctx, "s1", 1)
	recent[0].Content = "mutated"

	again, _ := store.All(ctx, "s1")
	if got := fmt.Sprint(contents(again)); got != "[msg-0 msg-1]" {
		t.Errorf("store changed through a returned slice: %s", got)
	}
}

func TestInMemoryHistory_PurgeAndLen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seeded(t, 2)
	_ = store.Append(ctx, "s2", userMsg("other"))

	if err := store.Purge(ctx, "s1"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	for session, want := range map[string]int{"s1": 0, "s2": 1, "missing": 0} {
		if n, err := store.Len(ctx, session); err != nil || n != want {
			t.Errorf("Len(%s) = %d, %v; want %d", session, n, err, want)
		}
	}
}

func TestInMemoryHistory_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewInMemoryHistoryStore()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			for j := range 20 {
				_ = store.Append(ctx, "shared", userMsg(fmt.Sprintf("%d-%d", i, j)))
				_, _ = store.Recent(ctx, "shared", 5)
			}
		})
	}
	wg.Wait()

	if n, _ := store.Len(ctx, "shared"); n != 200 {
		t.Errorf("Len = %d, want 200", n)
	}
}
