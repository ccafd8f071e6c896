package runner

import (
	"errors"
)

var (
	// ErrRetriesExhausted marks an item that failed every permitted attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrSkipped marks an item that was never dispatched because the
	// run ended early.
	ErrSkipped = errors.New("item skipped before dispatch")
	// ErrFallbackMismatch is returned by Build when the value given to
	// WithFallback is not assignable to the runner's result type.
	ErrFallbackMismatch = errors.New("fallback value does not match result type")
)
