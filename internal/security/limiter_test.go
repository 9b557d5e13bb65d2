package security

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRunLimiter(LimitConfig{RunsPerMinute: 2})
	l.now = func() time.Time { return now }

	for range 2 {
		release, err := l.Acquire("alice")
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		release()
	}
	if _, err := l.Acquire("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if _, err := l.Acquire("bob"); err != nil {
		t.Fatalf("other client should be admitted: %v", err)
	}

	now = now.Add(61 * time.Second)
	if _, err := l.Acquire("alice"); err != nil {
		t.Fatalf("expected admission after the window, got %v", err)
	}
}

// tracked returns the number of clients with a live window.
func (l *RunLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func TestRunLimiter_ForgetsIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRunLimiter(LimitConfig{RunsPerMinute: 5})
	l.now = func() time.Time { return now }

	for _, client := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		release, err := l.Acquire(client)
		if err != nil {
			t.Fatalf("Acquire(%s): %v", client, err)
		}
		release()
	}
	if got := l.tracked(); got != 3 {
		t.Fatalf("tracked = %d, want 3", got)
	}

	now = now.Add(2 * time.Minute)
	release, err := l.Acquire("10.0.0.4")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	if got := l.tracked(); got != 1 {
		t.Errorf("tracked = %d after the window passed, want 1", got)
	}
}

func TestRunLimiter_MaxConcurrent(t *testing.T) {
	t.Parallel()

	l := NewRunLimiter(LimitConfig{MaxConcurrent: 1})
	release, err := l.Acquire("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire("b"); !errors.Is(err, ErrTooManyRuns) {
		t.Fatalf("err = %v, want ErrTooManyRuns", err)
	}
	release()
	release()
	if l.InFlight() != 0 {
		t.Errorf("InFlight = %d after double release, want 0", l.InFlight())
	}
	if _, err := l.Acquire("b"); err != nil {
		t.Fatalf("expected admission after release: %v", err)
	}
}

func TestRunLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := NewRunLimiter(LimitConfig{})
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			release, err := l.Acquire("c")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			release()
		})
	}
	wg.Wait()
	if l.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", l.InFlight())
	}
}
