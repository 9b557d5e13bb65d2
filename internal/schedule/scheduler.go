// Package schedule runs agent tasks on cron expressions. A Scheduler fires
// registered jobs and never runs the same job twice in parallel; the
// schedule module feeds it jobs that submit runs to the runner.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job defines a periodic task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *") or a
	// descriptor such as "@hourly" or "@every 10m".
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// parser accepts standard 5-field expressions and descriptors.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule reports whether expr is a valid schedule.
func ParseSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("schedule: invalid expression %q: %w", expr, err)
	}
	return nil
}

// JobStatus is a snapshot of one job's execution history.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Next      time.Time `json:"next,omitzero"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	Skipped   int       `json:"skipped"`
}

type jobState struct {
	job     Job
	lock    sync.Mutex
	entry   cron.EntryID
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int
	fails   int
	skipped int
}

// Scheduler manages periodic job execution using cron expressions.
// Each job is guarded by its own mutex; a tick that finds the previous
// run still in progress is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []*jobState
	names  map[string]*jobState
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:  make(map[string]*jobState),
		logger: logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("schedule: duplicate job name %q", name)
	}

	st := &jobState{job: j}
	s.names[name] = st
	s.jobs = append(s.jobs, st)
	return nil
}

// Start begins executing registered jobs. Returns an error if any job
// has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New(cron.WithParser(parser))

	for _, st := range s.jobs {
		id, err := s.cron.AddFunc(st.job.Schedule(), func() { s.fire(ctx, st) })
		if err != nil {
			cancel()
			return fmt.Errorf("schedule: invalid schedule for job %q: %w", st.job.Name(), err)
		}
		st.entry = id
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// fire runs one tick of a job unless the previous tick is still running.
func (s *Scheduler) fire(ctx context.Context, st *jobState) {
	name := st.job.Name()
	if !st.lock.TryLock() {
		st.mu.Lock()
		st.skipped++
		st.mu.Unlock()
		s.logger.Warn("job still running, skipping tick", "job", name)
		return
	}
	defer st.lock.Unlock()

	s.logger.Debug("job started", "job", name)
	started := time.Now()
	err := st.job.Run(ctx)

	st.mu.Lock()
	st.lastRun = started
	st.lastErr = err
	st.runs++
	if err != nil {
		st.fails++
	}
	st.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("job completed", "job", name, "duration", time.Since(started))
}

// Status returns a snapshot of every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, st := range s.jobs {
		js := JobStatus{Name: st.job.Name(), Schedule: st.job.Schedule()}
		if s.cron != nil && st.entry != 0 {
			js.Next = s.cron.Entry(st.entry).Next
		}
		st.mu.Lock()
		js.LastRun = st.lastRun
		if st.lastErr != nil {
			js.LastError = st.lastErr.Error()
		}
		js.Runs = st.runs
		js.Failures = st.fails
		js.Skipped = st.skipped
		st.mu.Unlock()
		out = append(out, js)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop gracefully shuts down the scheduler. In-flight jobs are cancelled
// and awaited until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("schedule: stop: %w", ctx.Err())
	}
}
