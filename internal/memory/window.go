package memory

import (
	"context"

	"github.com/flemzord/mcpflow/internal/provider"
)

// Window loads at most limit recent messages of a session for use as run
// history. A window never starts inside a tool exchange: leading tool
// results, whose assistant call was cut off, are dropped. A nil store or a
// non-positive limit yields no history.
func Window(ctx context.Context, store HistoryStore, sessionID string, limit int) ([]provider.LLMMessage, error) {
	if store == nil || sessionID == "" || limit <= 0 {
		return nil, nil
	}

	msgs, err := store.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	start := 0
	for start < len(msgs) && msgs[start].Role == provider.MessageRoleTool {
		start++
	}
	return msgs[start:], nil
}
