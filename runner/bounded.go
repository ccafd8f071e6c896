package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// runBounded fans items out to a fixed-size worker pool. Workers pull
// indexed items from a shared feed and write results by index, so
// completion order never disturbs result order. On cancellation or an
// exit-on-error abort the feed stops, in-flight items finish, and
// every unclaimed slot receives the fallback.
func (e *execution[T, R]) runBounded(ctx context.Context, inputs []T) State {
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	feed := make(chan workItem[T])
	go func() {
		defer close(feed)
		for i := range inputs {
			select {
			case feed <- workItem[T]{index: i, payload: inputs[i]}:
			case <-feedCtx.Done():
				return
			}
		}
	}()

	var (
		wg      sync.WaitGroup
		aborted atomic.Bool
	)

	for w := 0; w < e.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for {
				select {
				case <-feedCtx.Done():
					return
				case item, ok := <-feed:
					if !ok {
						return
					}

					// The item context stays the caller's: a stopped
					// feed must not interrupt in-flight work.
					exhausted := e.process(ctx, item)
					if exhausted && e.exitOnError {
						e.logger.Info("run aborted by exit-on-error policy", "index", item.index)
						aborted.Store(true)
						stopFeed()
						return
					}
				}
			}
		}()
	}

	wg.Wait()

	switch {
	case aborted.Load():
		e.fillRemaining(fmt.Errorf("%w: earlier item exhausted retries", ErrSkipped))
		return StateAborted
	case ctx.Err() != nil:
		e.fillRemaining(fmt.Errorf("%w: %w", ErrSkipped, context.Cause(ctx)))
		return StateCancelled
	}

	return StateCompleted
}
