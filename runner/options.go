package runner

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const defaultConcurrency = 8

// Option is a functional option for configuring a Runner via [Build].
type Option func(*options) error

type options struct {
	concurrency       int
	maxRetries        int
	exitOnError       bool
	fallback          any
	progress          func(completed, total int)
	logger            *slog.Logger
	tracer            trace.Tracer
	forceSequential   bool
	externalScheduler bool
	nestedSchedulers  bool
}

// WithConcurrency sets the worker pool size. Defaults to 8; a value
// of 1 runs items sequentially.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.New("concurrency must be greater than zero")
		}
		o.concurrency = n
		return nil
	}
}

// WithMaxRetries sets how many times a failing item is retried beyond
// its first attempt. Defaults to 0 (no retries).
func WithMaxRetries(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max retries must not be negative")
		}
		o.maxRetries = n
		return nil
	}
}

// WithExitOnError aborts the run when an item exhausts its retries:
// every item after it in dispatch order is fallback-filled. Without
// it, only the failing item receives the fallback and the run
// continues.
func WithExitOnError() Option {
	return func(o *options) error {
		o.exitOnError = true
		return nil
	}
}

// WithFallback sets the value recorded for items that permanently fail
// or are never dispatched. v must be the runner's result type; Build
// fails otherwise. Defaults to the result type's zero value.
func WithFallback(v any) Option {
	return func(o *options) error {
		o.fallback = v
		return nil
	}
}

// WithProgress registers a callback invoked once per completed (or
// fallback-filled) item with the running completed-count and the
// total. Invocations are serialized; the callback must not block.
func WithProgress(fn func(completed, total int)) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("progress callback must not be nil")
		}
		o.progress = fn
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records a span per run on the given tracer. A no-op
// tracer is used by default.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithSequential forces strictly sequential execution regardless of
// any other setting.
func WithSequential() Option {
	return func(o *options) error {
		o.forceSequential = true
		return nil
	}
}

// WithExternalScheduler declares that the caller is already running
// inside another cooperative scheduler whose worker budget the runner
// must not multiply. Unless nested scheduling is explicitly allowed
// via WithNestedSchedulers, the runner stays on the caller's
// goroutine and runs sequentially.
func WithExternalScheduler() Option {
	return func(o *options) error {
		o.externalScheduler = true
		return nil
	}
}

// WithNestedSchedulers permits a concurrent worker pool even when the
// caller declared an external scheduler.
func WithNestedSchedulers() Option {
	return func(o *options) error {
		o.nestedSchedulers = true
		return nil
	}
}
