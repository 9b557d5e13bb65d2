package security

import (
	"errors"
	"sync"
	"time"
)

// Limiter errors.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrTooManyRuns = errors.New("too many concurrent runs")
)

// LimitConfig bounds how runs may be started.
type LimitConfig struct {
	// RunsPerMinute caps run starts per client over a sliding minute.
	// Zero disables the check.
	RunsPerMinute int `yaml:"runs_per_minute"`

	// MaxConcurrent caps runs in flight across all clients.
	// Zero disables the check.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RunLimiter admits runs under a per-client sliding window and a global
// concurrency cap. It is safe for concurrent use.
type RunLimiter struct {
	mu        sync.Mutex
	cfg       LimitConfig
	windows   map[string][]time.Time
	lastSweep time.Time
	inFlight  int
	now       func() time.Time
}

// NewRunLimiter creates a limiter for cfg.
func NewRunLimiter(cfg LimitConfig) *RunLimiter {
	return &RunLimiter{
		cfg:     cfg,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Acquire admits one run for client. On success the returned release must
// be called once the run ends; it is safe to call more than once.
func (l *RunLimiter) Acquire(client string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MaxConcurrent > 0 && l.inFlight >= l.cfg.MaxConcurrent {
		return nil, ErrTooManyRuns
	}
	if l.cfg.RunsPerMinute > 0 {
		now := l.now()
		l.sweep(now)
		events := evict(l.windows[client], now.Add(-time.Minute))
		if len(events) >= l.cfg.RunsPerMinute {
			l.windows[client] = events
			return nil, ErrRateLimited
		}
		l.windows[client] = append(events, now)
	}

	l.inFlight++
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.inFlight--
			l.mu.Unlock()
		})
	}, nil
}

// InFlight returns the number of admitted runs not yet released.
func (l *RunLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// sweep forgets clients with no run start inside the window, at most
// once per window.
func (l *RunLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-time.Minute)
	for client, events := range l.windows {
		if events = evict(events, cutoff); len(events) == 0 {
			delete(l.windows, client)
		} else {
			l.windows[client] = events
		}
	}
}

// evict drops events older than cutoff. Events are in chronological order.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	return events[i:]
}
