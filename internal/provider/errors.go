package provider

import "errors"

// Errors a Provider wraps so that callers can react without knowing which
// API produced them. Stream returns them when opening a stream fails and
// sends them in StreamChunk.Err when a stream breaks.
var (
	ErrRateLimit     = errors.New("provider rate limited")
	ErrContextLength = errors.New("context length exceeded")
	ErrProviderDown  = errors.New("provider unavailable")
	ErrAuth          = errors.New("provider authentication failed")
)

// IsRetryable reports whether err is transient: the same request may
// succeed after a pause.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
