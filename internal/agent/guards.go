package agent

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/flemzord/mcpflow/internal/provider"
	"github.com/flemzord/mcpflow/internal/tool"
)

// signature identifies a tool call independently of its call ID.
type signature string

func signatureOf(name string, args json.RawMessage) signature {
	return signature(tool.NormalizeName(name) + "\x00" + canonicalArgs(args))
}

// canonicalArgs compacts args with object keys sorted at every depth.
// Text that is not valid JSON is returned unchanged.
func canonicalArgs(args json.RawMessage) string {
	if !gjson.ValidBytes(args) {
		return string(args)
	}
	sorted := pretty.PrettyOptions(args, &pretty.Options{SortKeys: true})
	return string(pretty.Ugly(sorted))
}

type callEntry struct {
	planned int
	done    bool
	result  ToolCallResult
}

// callMemory is what one run knows about the calls it has planned and
// dispatched. It backs both loop detection and the repeat policy, and is
// never shared between runs.
type callMemory struct {
	loopThreshold int
	entries       map[signature]*callEntry
}

func newCallMemory(loopThreshold int) *callMemory {
	return &callMemory{
		loopThreshold: loopThreshold,
		entries:       make(map[signature]*callEntry),
	}
}

func (m *callMemory) entry(req ToolCallRequest) *callEntry {
	sig := signatureOf(req.Name, req.Arguments)
	e, ok := m.entries[sig]
	if !ok {
		e = &callEntry{}
		m.entries[sig] = e
	}
	return e
}

// plan counts req as planned and marks it as a repeat when an equivalent
// call already has a recorded result. It reports whether the call has now
// been planned loopThreshold times; a zero threshold never trips.
// Malformed requests are ignored.
func (m *callMemory) plan(req *ToolCallRequest) bool {
	if req.Err != nil {
		return false
	}
	e := m.entry(*req)
	e.planned++
	req.Repeat = e.done
	return m.loopThreshold > 0 && e.planned >= m.loopThreshold
}

// prior returns the recorded result of an equivalent call if it succeeded.
func (m *callMemory) prior(req ToolCallRequest) (ToolCallResult, bool) {
	if req.Err != nil {
		return ToolCallResult{}, false
	}
	e, ok := m.entries[signatureOf(req.Name, req.Arguments)]
	if !ok || !e.done || e.result.Failed() {
		return ToolCallResult{}, false
	}
	return e.result, true
}

// record stores the latest outcome of a dispatched call.
func (m *callMemory) record(req ToolCallRequest, res ToolCallResult) {
	if req.Err != nil {
		return
	}
	e := m.entry(req)
	e.done = true
	e.result = res
}

// tokenBudget sums the usage reported by every planning turn of a run.
type tokenBudget struct {
	limit int
	used  provider.TokenUsage
}

func (b *tokenBudget) charge(u provider.TokenUsage) {
	b.used.Add(u)
}

// spent reports whether usage reached the limit. Zero means unlimited.
func (b *tokenBudget) spent() bool {
	return b.limit > 0 && b.used.TotalTokens >= b.limit
}
