package generation

import "context"

// StageClient defines the interface for a single call to the reasoning
// service. This interface serves as a boundary between the application core
// and external AI/LLM services, following the hexagonal architecture pattern.
//
// Implementations own their transient-error policy: a returned error wrapping
// ErrTransientFailure means retries were already exhausted, and an error
// wrapping ErrFatal must be propagated without retry.
type StageClient interface {
	// Generate sends a system context and a user context to the model and
	// returns its raw text output.
	Generate(ctx context.Context, systemContext, userContext string) (string, error)
}

// StageClientFunc adapts an ordinary function to the StageClient interface.
type StageClientFunc func(ctx context.Context, systemContext, userContext string) (string, error)

// Generate calls f.
func (f StageClientFunc) Generate(ctx context.Context, systemContext, userContext string) (string, error) {
	return f(ctx, systemContext, userContext)
}
