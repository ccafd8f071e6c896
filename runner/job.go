package runner

import (
	"context"
	"sync/atomic"
)

// Job is a handle to an in-flight run started with [Runner.Start].
type Job[R any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	results []R
	details []Detail
	state   atomic.Int32
}

// Start launches the run on its own goroutine and returns immediately.
// It is the suspendable entry point for callers that are themselves
// inside a concurrent context; Run is the fire-and-wait equivalent.
func (r *Runner[T, R]) Start(ctx context.Context, inputs []T) *Job[R] {
	ctx, cancel := context.WithCancel(ctx)

	j := &Job[R]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	j.state.Store(int32(StateRunning))

	go func() {
		defer cancel()
		defer close(j.done)

		results, details, state := r.run(ctx, inputs)
		j.results, j.details = results, details
		j.state.Store(int32(state))
	}()

	return j
}

// Done returns a channel that is closed when the run reaches a
// terminal state.
func (j *Job[R]) Done() <-chan struct{} { return j.done }

// Wait blocks until the run finishes and returns its full-length
// results and details.
func (j *Job[R]) Wait() ([]R, []Detail) {
	<-j.done
	return j.results, j.details
}

// Cancel requests graceful termination: no new items are dispatched,
// in-flight items finish, and unprocessed slots are fallback-filled.
func (j *Job[R]) Cancel() { j.cancel() }

// State reports the job's current lifecycle state.
func (j *Job[R]) State() State { return State(j.state.Load()) }
