package runner

import (
	"context"
)

// WorkFunc processes a single item. Implementations must be safe to
// call concurrently when the runner uses more than one worker.
type WorkFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Status classifies how a result slot was produced.
type Status int

const (
	// Success means the work function succeeded on the first attempt.
	Success Status = iota
	// Retried means the work function succeeded after at least one retry.
	Retried
	// FallbackUsed means the slot holds the fallback value: the item
	// permanently failed or was never dispatched before the run ended.
	FallbackUsed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Retried:
		return "retried"
	case FallbackUsed:
		return "fallback"
	default:
		return "unknown"
	}
}

// Detail reports the outcome for a single input item. Index always
// matches the item's position in the input slice.
type Detail struct {
	Index    int
	Status   Status
	Attempts int
	Err      error
}

// State reports where a run is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	// StateCompleted means every item was processed.
	StateCompleted
	// StateAborted means the exit-on-error policy stopped the run
	// after an item exhausted its retries.
	StateAborted
	// StateCancelled means context or signal cancellation stopped the
	// run before all items were dispatched.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// workItem carries an input and its position in the original sequence.
type workItem[T any] struct {
	index   int
	payload T
}
