package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/mcpflow/internal/schedule"
	"github.com/flemzord/mcpflow/internal/schedule/scheduletest"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{"*/5 * * * *", "0 6 * * 1-5", "@hourly", "@every 10m"}
	invalid := []string{"", "60 * * * *", "* * * * * *", "@fortnightly"}

	for _, expr := range valid {
		if err := schedule.ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q) = %v, want nil", expr, err)
		}
	}
	for _, expr := range invalid {
		if err := schedule.ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) = nil, want error", expr)
		}
	}
}

func TestScheduler_Register(t *testing.T) {
	t.Parallel()

	s := schedule.NewScheduler(quietLogger())
	if err := s.RegisterJob(&scheduletest.MockJob{NameVal: "digest", ScheduleVal: "@daily"}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}
	if err := s.RegisterJob(&scheduletest.MockJob{NameVal: "digest", ScheduleVal: "@hourly"}); err == nil {
		t.Error("duplicate job name accepted")
	}
	if err := s.RegisterJob(&scheduletest.MockJob{NameVal: "audit", ScheduleVal: "0 6 * * 1-5"}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}

	status := s.Status()
	if len(status) != 2 || status[0].Name != "audit" || status[1].Name != "digest" {
		t.Fatalf("status = %+v, want audit and digest sorted by name", status)
	}
	if !status[0].Next.IsZero() {
		t.Error("next tick reported before Start")
	}
}

func TestScheduler_StartRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	s := schedule.NewScheduler(quietLogger())
	_ = s.RegisterJob(&scheduletest.MockJob{NameVal: "bad", ScheduleVal: "invalid"})
	if err := s.Start(); err == nil {
		t.Fatal("Start accepted an invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := schedule.NewScheduler(nil)
	_ = s.RegisterJob(&scheduletest.MockJob{NameVal: "noop", ScheduleVal: "* * * * *"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if next := s.Status()[0].Next; next.IsZero() {
		t.Error("started job has no next tick")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := schedule.NewScheduler(quietLogger()).Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_FiresAndCancelsOnStop(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var once sync.Once
	job := &scheduletest.MockJob{
		NameVal:     "blocking",
		ScheduleVal: "@every 1s",
		RunFunc: func(ctx context.Context) error {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return ctx.Err()
		},
	}

	s := schedule.NewScheduler(quietLogger())
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if job.Calls() != 1 {
		t.Errorf("calls = %d, want 1 while the first run blocked", job.Calls())
	}
}
