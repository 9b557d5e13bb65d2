package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/flemzord/mcpflow/internal/provider"
)

// historyStore keeps each session's messages ordered by a per-session
// sequence number. When maxMessages is set, Append drops the oldest
// messages of a session that grew past it.
type historyStore struct {
	db          *sql.DB
	maxMessages int
}

const messageColumns = "role, content, name, tool_id, tool_calls, is_error"

// Append adds msgs after the session's last message in one transaction.
func (h *historyStore) Append(ctx context.Context, sessionID string, msgs ...provider.LLMMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&last); err != nil {
		return fmt.Errorf("sqlite: read sequence: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, seq, "+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare append: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for i, msg := range msgs {
		calls, err := encodeToolCalls(msg.ToolCalls)
		if err != nil {
			return err
		}
		if _, err := insert.ExecContext(ctx, sessionID, last+i+1,
			string(msg.Role), msg.Content, msg.Name, msg.ToolID, calls, msg.IsError,
		); err != nil {
			return fmt.Errorf("sqlite: append message: %w", err)
		}
	}

	if h.maxMessages > 0 {
		cutoff := last + len(msgs) - h.maxMessages
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM messages WHERE session_id = ? AND seq <= ?", sessionID, cutoff,
		); err != nil {
			return fmt.Errorf("sqlite: trim history: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns the last n messages of a session, oldest first.
func (h *historyStore) Recent(ctx context.Context, sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	return h.query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT seq, `+messageColumns+` FROM messages
			WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`,
		sessionID, n,
	)
}

// All returns every message of a session, oldest first.
func (h *historyStore) All(ctx context.Context, sessionID string) ([]provider.LLMMessage, error) {
	return h.query(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
}

// Purge removes a session's history.
func (h *historyStore) Purge(ctx context.Context, sessionID string) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge messages: %w", err)
	}
	return nil
}

// Len counts a session's stored messages.
func (h *historyStore) Len(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}

func (h *historyStore) query(ctx context.Context, q string, args ...any) ([]provider.LLMMessage, error) {
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []provider.LLMMessage
	for rows.Next() {
		var (
			msg   provider.LLMMessage
			role  string
			calls string
		)
		if err := rows.Scan(&role, &msg.Content, &msg.Name, &msg.ToolID, &calls, &msg.IsError); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = provider.MessageRole(role)
		if msg.ToolCalls, err = decodeToolCalls(calls); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: message rows: %w", err)
	}
	return out, nil
}

func encodeToolCalls(calls []provider.ToolCall) (string, error) {
	if len(calls) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(calls)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode tool calls: %w", err)
	}
	return string(raw), nil
}

func decodeToolCalls(raw string) ([]provider.ToolCall, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var calls []provider.ToolCall
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return nil, fmt.Errorf("sqlite: decode tool calls: %w", err)
	}
	return calls, nil
}
