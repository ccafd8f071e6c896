package runner

import (
	"context"
	"fmt"
)

// runSequential processes items one at a time in input order on the
// calling goroutine. Cancellation is polled between items, never
// mid-item: a dispatched item always runs to its own conclusion.
func (e *execution[T, R]) runSequential(ctx context.Context, inputs []T) State {
	for i := range inputs {
		if err := ctx.Err(); err != nil {
			e.logger.Info("run cancelled", "processed", i, "remaining", len(inputs)-i)
			e.fillRemaining(fmt.Errorf("%w: %w", ErrSkipped, context.Cause(ctx)))
			return StateCancelled
		}

		exhausted := e.process(ctx, workItem[T]{index: i, payload: inputs[i]})
		if exhausted && e.exitOnError {
			e.logger.Info("run aborted by exit-on-error policy", "index", i)
			e.fillRemaining(fmt.Errorf("%w: earlier item exhausted retries", ErrSkipped))
			return StateAborted
		}
	}

	return StateCompleted
}
