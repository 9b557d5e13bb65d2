// Package provider defines the model transport contract used by the agent
// loop: a streaming completion endpoint that emits text and indexed
// tool-call fragments.
package provider

import "context"

// Provider streams model turns. Implementations register themselves as
// provider.<name> modules.
type Provider interface {
	// Stream opens one turn. Failures before the stream starts are
	// returned; later ones arrive as the final chunk's Err. The channel
	// is closed when the turn ends or ctx is done.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName is the model identifier, used in logs and run records.
	ModelName() string
}
