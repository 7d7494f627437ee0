package retry

import (
	"context"
)

// NoRetryStrategy passes every operation straight through, so chain reads
// surface their first error. Selected when RETRY_ENABLED is false.
type NoRetryStrategy struct{}

// NewNoRetryStrategy creates a pass-through strategy
func NewNoRetryStrategy() *NoRetryStrategy {
	return &NoRetryStrategy{}
}

// Execute runs the operation exactly once
func (s *NoRetryStrategy) Execute(ctx context.Context, operation Operation) error {
	return operation()
}

// Name returns the strategy name
func (s *NoRetryStrategy) Name() string {
	return "NoRetry"
}
