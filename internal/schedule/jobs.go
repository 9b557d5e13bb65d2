package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/mcpflow/internal/agent"
	"github.com/flemzord/mcpflow/internal/runner"
)

// Runs is what scheduled jobs need from the runner.
type Runs interface {
	Run(ctx context.Context, req runner.Request) (agent.Response, error)
}

// RunJob submits the same request to the runner on every tick.
type RunJob struct {
	name     string
	schedule string
	request  runner.Request
	timeout  time.Duration
	runs     Runs
	logger   *slog.Logger
}

// NewRunJob builds a job from its configuration.
func NewRunJob(cfg JobConfig, runs Runs, logger *slog.Logger) *RunJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunJob{
		name:     cfg.Name,
		schedule: cfg.Schedule,
		request: runner.Request{
			SessionID:     cfg.SessionID,
			Input:         cfg.Input,
			SystemPrompt:  cfg.SystemPrompt,
			MaxIterations: cfg.MaxIterations,
		},
		timeout: cfg.Timeout,
		runs:    runs,
		logger:  logger.With("job", cfg.Name),
	}
}

// Name implements Job.
func (j *RunJob) Name() string { return j.name }

// Schedule implements Job.
func (j *RunJob) Schedule() string { return j.schedule }

// Run implements Job. A run that ends in the failed state is reported as
// an error so the scheduler counts it.
func (j *RunJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	resp, err := j.runs.Run(ctx, j.request)
	if err != nil {
		return fmt.Errorf("scheduled run failed: %w", err)
	}
	if resp.State != agent.StateDone {
		return errors.New("scheduled run ended in state " + string(resp.State))
	}

	j.logger.Info("scheduled run completed",
		"run_id", resp.RunID,
		"iterations", resp.Iterations,
		"stop_reason", resp.StopReason,
	)
	return nil
}
