package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{ErrRateLimit, true},
		{ErrProviderDown, true},
		{fmt.Errorf("openai: %w: 429", ErrRateLimit), true},
		{fmt.Errorf("%w: %w", ErrProviderDown, errors.New("dial tcp: connection refused")), true},
		{ErrContextLength, false},
		{ErrAuth, false},
		{fmt.Errorf("anthropic: %w", ErrContextLength), false},
		{context.Canceled, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
