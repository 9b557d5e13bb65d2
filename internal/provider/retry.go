package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how a provider call is retried.
type RetryPolicy struct {
	// Retries is the number of attempts after the first one.
	Retries int

	// Backoff is the first wait; later waits grow exponentially with
	// jitter up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// WithRetry wraps p so that opening a stream is retried on rate limits and
// provider outages. Only the opening call is retried: once chunks flow, a
// failure is reported as is, since replaying a turn would duplicate output.
// A policy without retries returns p unchanged.
func WithRetry(p Provider, policy RetryPolicy, logger *slog.Logger) Provider {
	if policy.Retries <= 0 {
		return p
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &retrying{next: p, policy: policy, logger: logger}
}

type retrying struct {
	next   Provider
	policy RetryPolicy
	logger *slog.Logger
}

func (r *retrying) ModelName() string { return r.next.ModelName() }

func (r *retrying) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	b := backoff.NewExponentialBackOff()
	if r.policy.Backoff > 0 {
		b.InitialInterval = r.policy.Backoff
	}
	if r.policy.MaxBackoff > 0 {
		b.MaxInterval = r.policy.MaxBackoff
	}

	return backoff.Retry(ctx, func() (<-chan StreamChunk, error) {
		ch, err := r.next.Stream(ctx, req)
		if err != nil && !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return ch, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.Retries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("provider call failed, retrying", "model", r.next.ModelName(), "error", err, "wait", wait)
		}),
	)
}
