// Package scheduletest provides test doubles for the schedule package.
package scheduletest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/schedule"
)

// Compile-time interface checks.
var (
	_ schedule.Job  = (*MockJob)(nil)
	_ schedule.Runs = (*MockRuns)(nil)
)

// MockJob is a schedule.Job whose body is RunFunc. It counts its runs.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	calls atomic.Int32
}

// Name implements schedule.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements schedule.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements schedule.Job.
func (m *MockJob) Run(ctx context.Context) error {
	m.calls.Add(1)
	if m.RunFunc == nil {
		return nil
	}
	return m.RunFunc(ctx)
}

// Calls returns how many times Run was entered.
func (m *MockJob) Calls() int {
	return int(m.calls.Load())
}

// MockRuns records submitted requests and answers with RunFunc, or with a
// completed response when RunFunc is nil.
type MockRuns struct {
	RunFunc func(ctx context.Context, req runner.Request) (agent.Response, error)

	mu       sync.Mutex
	requests []runner.Request
}

// Run implements schedule.Runs.
func (m *MockRuns) Run(ctx context.Context, req runner.Request) (agent.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return agent.Response{RunID: "run-1", State: agent.StateDone, StopReason: agent.StopReasonComplete}, nil
}

// Requests returns a copy of every request received.
func (m *MockRuns) Requests() []runner.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}
