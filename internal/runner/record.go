package runner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/memory"
	"github.com/flemzord/mcpflow/internal/provider"
)

// exchangeMessages is what a finished run adds to its session: the user
// input, every tool exchange and the final answer.
func exchangeMessages(input string, resp agent.Response) []provider.LLMMessage {
	msgs := []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: input}}
	msgs = append(msgs, agent.ReplayMessages(resp.Steps)...)
	if resp.Answer != "" {
		msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: resp.Answer})
	}
	return msgs
}

// Step is the JSON form of a ledger entry, used by the run archive and the
// gateway. Errors are kept as text since StepRecord does not serialize them.
type Step struct {
	Round      int             `json:"round"`
	Kind       agent.StepKind  `json:"kind"`
	Text       string          `json:"text,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	Tool       string          `json:"tool,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Repeat     bool            `json:"repeat,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
}

// Steps converts ledger entries to their JSON form.
func Steps(steps []agent.StepRecord) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		as := Step{Round: s.Round, Kind: s.Kind, Text: s.Text}
		if s.Kind == agent.StepKindToolCall {
			as.CallID = s.Request.ID
			as.Tool = s.Request.Name
			if s.Request.Err == nil {
				as.Arguments = s.Request.Arguments
			}
			as.Output = s.Result.Output
			if s.Result.Err != nil {
				as.Error = s.Result.Err.Error()
			}
			as.Repeat = s.Request.Repeat
			as.Cached = s.Result.Cached
			as.DurationMS = s.Result.Duration.Milliseconds()
		}
		out = append(out, as)
	}
	return out
}

func archiveRecord(req Request, resp agent.Response) (memory.RunRecord, error) {
	steps, err := json.Marshal(Steps(resp.Steps))
	if err != nil {
		return memory.RunRecord{}, fmt.Errorf("runner: marshal steps: %w", err)
	}
	rec := memory.RunRecord{
		RunID:      resp.RunID,
		SessionID:  req.SessionID,
		Input:      req.Input,
		Answer:     resp.Answer,
		Summary:    resp.Summary,
		State:      string(resp.State),
		StopReason: string(resp.StopReason),
		Iterations: resp.Iterations,
		Steps:      steps,
		Tokens:     resp.Usage.TotalTokens,
		CreatedAt:  time.Now().UTC(),
	}
	if resp.Err != nil {
		rec.Error = resp.Err.Error()
	}
	return rec, nil
}
