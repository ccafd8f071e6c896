package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Runner executes a work function over ordered input batches with
// bounded concurrency, retry and fallback policy, and adaptive
// backpressure composed in via the wrapped work function. A Runner is
// immutable after Build and safe for concurrent runs.
type Runner[T, R any] struct {
	work              WorkFunc[T, R]
	concurrency       int
	maxRetries        int
	exitOnError       bool
	fallback          R
	progress          func(completed, total int)
	logger            *slog.Logger
	tracer            trace.Tracer
	forceSequential   bool
	externalScheduler bool
	nestedSchedulers  bool
}

// Build creates a Runner for the given work function.
func Build[T, R any](work WorkFunc[T, R], optFns ...Option) (*Runner[T, R], error) {
	if work == nil {
		return nil, errors.New("work function must not be nil")
	}

	opts := options{concurrency: defaultConcurrency}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying runner option: %w", err)
		}
	}

	r := &Runner[T, R]{
		work:              work,
		concurrency:       opts.concurrency,
		maxRetries:        opts.maxRetries,
		exitOnError:       opts.exitOnError,
		progress:          opts.progress,
		logger:            opts.logger,
		tracer:            opts.tracer,
		forceSequential:   opts.forceSequential,
		externalScheduler: opts.externalScheduler,
		nestedSchedulers:  opts.nestedSchedulers,
	}

	if opts.fallback != nil {
		fb, ok := opts.fallback.(R)
		if !ok {
			return nil, fmt.Errorf("%T: %w", opts.fallback, ErrFallbackMismatch)
		}
		r.fallback = fb
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	return r, nil
}

// Run processes inputs and blocks until the run reaches a terminal
// state. The returned slices always have the same length as inputs,
// with slot i holding the result (or fallback) for input i; the Detail
// slice explains each slot. Run never returns an error: item failures
// are resolved into fallback values, and cancellation is a normal
// termination path.
func (r *Runner[T, R]) Run(ctx context.Context, inputs []T) ([]R, []Detail) {
	results, details, _ := r.run(ctx, inputs)
	return results, details
}

// Sequential reports whether this runner executes items one at a time
// on the caller's goroutine instead of fanning out to a worker pool.
func (r *Runner[T, R]) Sequential() bool {
	switch {
	case r.forceSequential:
		return true
	case r.externalScheduler && !r.nestedSchedulers:
		return true
	case r.concurrency <= 1:
		return true
	}

	return false
}

// run drives a single batch to a terminal state.
func (r *Runner[T, R]) run(ctx context.Context, inputs []T) ([]R, []Detail, State) {
	ctx, span, logger := r.startSpan(ctx, len(inputs))
	defer span.End()

	e := &execution[T, R]{
		Runner:  r,
		results: make([]R, len(inputs)),
		details: make([]Detail, len(inputs)),
		prog:    newTracker(len(inputs), r.progress, logger),
		logger:  logger,
	}

	var state State
	if r.Sequential() {
		state = e.runSequential(ctx, inputs)
	} else {
		state = e.runBounded(ctx, inputs)
	}

	span.SetAttributes(attribute.String("state", state.String()))
	logger.Info("run finished",
		"state", state.String(),
		"items", len(inputs),
		"fallbacks", e.fallbackCount(),
	)

	return e.results, e.details, state
}

// startSpan opens the per-run span and derives a run-scoped logger.
// The run ID is the trace ID when a real tracer is configured, a
// fresh uuid otherwise.
func (r *Runner[T, R]) startSpan(ctx context.Context, total int) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := r.tracer.Start(ctx, "runner.run")
	span.SetAttributes(
		attribute.Int("items", total),
		attribute.Int("concurrency", r.concurrency),
		attribute.Bool("sequential", r.Sequential()),
	)

	runID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		runID = uuid.New().String()
	}

	return ctx, span, r.logger.With("run_id", runID)
}

// execution carries the mutable state of one run.
type execution[T, R any] struct {
	*Runner[T, R]
	results []R
	details []Detail
	prog    *tracker
	logger  *slog.Logger
}

// process runs one item under the retry policy and records its slot.
// It reports whether the item permanently failed.
func (e *execution[T, R]) process(ctx context.Context, item workItem[T]) (exhausted bool) {
	var (
		out R
		err error
	)

	attempts := 0
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		attempts++

		out, err = e.work(ctx, item.payload)
		if err == nil {
			status := Success
			if attempt > 0 {
				status = Retried
			}

			e.results[item.index] = out
			e.details[item.index] = Detail{Index: item.index, Status: status, Attempts: attempts}
			e.prog.done()

			return false
		}

		e.logger.Warn("item attempt failed", "index", item.index, "attempt", attempts, "error", err)
	}

	e.results[item.index] = e.fallback
	e.details[item.index] = Detail{
		Index:    item.index,
		Status:   FallbackUsed,
		Attempts: attempts,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err),
	}
	e.prog.done()

	return true
}

// fillRemaining writes the fallback into every slot not yet produced,
// attributing them to reason. Slot production is tracked through the
// Attempts field: a processed slot always has at least one attempt.
func (e *execution[T, R]) fillRemaining(reason error) {
	for i := range e.details {
		if e.details[i].Attempts > 0 {
			continue
		}

		e.results[i] = e.fallback
		e.details[i] = Detail{Index: i, Status: FallbackUsed, Err: reason}
		e.prog.done()
	}
}

func (e *execution[T, R]) fallbackCount() int {
	n := 0
	for i := range e.details {
		if e.details[i].Status == FallbackUsed {
			n++
		}
	}
	return n
}
