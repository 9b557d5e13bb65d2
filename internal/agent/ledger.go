package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/mcpflow/internal/provider"
)

// Ledger is the append-only record of a run: the reasoning text of every
// round followed by its tool calls in call-id order. It is owned by a single
// run and never accessed concurrently.
type Ledger struct {
	steps []StepRecord
}

// appendRound records one dispatch round. results must be sorted by call id;
// each request is paired with the result carrying its id.
func (l *Ledger) appendRound(round int, text string, calls []ToolCallRequest, results []ToolCallResult) {
	if strings.TrimSpace(text) != "" {
		l.steps = append(l.steps, StepRecord{Round: round, Kind: StepKindReasoning, Text: text})
	}

	byID := make(map[string]ToolCallRequest, len(calls))
	for _, c := range calls {
		byID[c.ID] = c
	}
	for _, res := range results {
		req, ok := byID[res.CallID]
		if !ok {
			continue
		}
		l.steps = append(l.steps, StepRecord{Round: round, Kind: StepKindToolCall, Request: req, Result: res})
	}
}

// Steps returns a copy of every record.
func (l *Ledger) Steps() []StepRecord {
	return append([]StepRecord(nil), l.steps...)
}

// Len returns the number of records.
func (l *Ledger) Len() int { return len(l.steps) }

func (l *Ledger) toolRecords() []StepRecord {
	var out []StepRecord
	for _, s := range l.steps {
		if s.Kind == StepKindToolCall {
			out = append(out, s)
		}
	}
	return out
}

// Messages renders the ledger as model context: per round an assistant
// message carrying the tool calls, then one tool message per result.
//
// When more than compactAfter tool records exist, all but the last keep are
// folded into a single system message.
func (l *Ledger) Messages(compactAfter, keep int) []provider.LLMMessage {
	tools := l.toolRecords()
	skip := 0
	var msgs []provider.LLMMessage
	if compactAfter > 0 && len(tools) > compactAfter {
		skip = len(tools) - keep
		var b strings.Builder
		b.WriteString("Earlier tool calls in this run (compacted):\n")
		for _, s := range tools[:skip] {
			fmt.Fprintf(&b, "- %s\n", describeStep(s))
		}
		msgs = append(msgs, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: strings.TrimRight(b.String(), "\n"),
		})
	}

	seen := 0
	var assistant *provider.LLMMessage
	var results []provider.LLMMessage
	round := 0
	flush := func() {
		if assistant != nil && len(assistant.ToolCalls) > 0 {
			msgs = append(msgs, *assistant)
			msgs = append(msgs, results...)
		}
		assistant = nil
		results = nil
	}

	for _, s := range l.steps {
		if s.Round != round {
			flush()
			round = s.Round
			assistant = &provider.LLMMessage{Role: provider.MessageRoleAssistant}
		}
		switch s.Kind {
		case StepKindReasoning:
			assistant.Content += s.Text
		case StepKindToolCall:
			seen++
			if seen <= skip {
				continue
			}
			assistant.ToolCalls = append(assistant.ToolCalls, provider.ToolCall{
				ID:        s.Request.ID,
				Name:      s.Request.Name,
				Arguments: replayArgs(s.Request),
			})
			results = append(results, provider.LLMMessage{
				Role:    provider.MessageRoleTool,
				Content: s.Result.Outcome(),
				ToolID:  s.Request.ID,
				Name:    s.Request.Name,
				IsError: s.Result.Failed(),
			})
		}
	}
	flush()
	return msgs
}

// replayArgs returns arguments that are safe to send back to the model.
// Malformed requests carry none.
func replayArgs(req ToolCallRequest) json.RawMessage {
	if req.Err != nil || len(req.Arguments) == 0 {
		return json.RawMessage(`{}`)
	}
	return req.Arguments
}

// Summary renders every tool record with its name, arguments and outcome.
func (l *Ledger) Summary() string {
	tools := l.toolRecords()
	if len(tools) == 0 {
		return "No tool calls."
	}

	rounds := 0
	var b strings.Builder
	for i, s := range tools {
		rounds = max(rounds, s.Round)
		fmt.Fprintf(&b, "%d. [round %d] %s\n", i+1, s.Round, describeStep(s))
	}
	return fmt.Sprintf("%d tool call(s) in %d round(s):\n%s", len(tools), rounds, strings.TrimRight(b.String(), "\n"))
}

// bestEffortAnswer is the final answer of a run stopped by the iteration
// limit.
func (l *Ledger) bestEffortAnswer(maxIterations int) string {
	return fmt.Sprintf("Stopped after reaching the limit of %d round(s). Results so far:\n%s", maxIterations, l.Summary())
}

func describeStep(s StepRecord) string {
	args := "{}"
	if s.Request.Err == nil && len(s.Request.Arguments) > 0 {
		args = string(s.Request.Arguments)
	}

	var flags string
	if s.Result.Cached {
		flags = " (cached)"
	} else if s.Request.Repeat {
		flags = " (repeat)"
	}

	if s.Result.Failed() {
		return fmt.Sprintf("%s(%s) failed: %v%s", s.Request.Name, args, s.Result.Err, flags)
	}
	return fmt.Sprintf("%s(%s) -> %s%s", s.Request.Name, args, truncate(s.Result.Output, 500), flags)
}

// ReplayMessages renders recorded steps as uncompacted model context, the
// form in which a finished run's tool exchanges are kept in conversation
// history.
func ReplayMessages(steps []StepRecord) []provider.LLMMessage {
	l := Ledger{steps: steps}
	return l.Messages(0, 0)
}
