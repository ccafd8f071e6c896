package limit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrThrottled marks an error as a rate-limit rejection. Callers
	// whose providers surface throttling some other way can supply
	// their own sentinels or a predicate instead.
	ErrThrottled = errors.New("throttled by remote service")

	ErrAttemptsExhausted = errors.New("throttle retries exhausted")
	ErrMustBePositive    = errors.New("must be greater than zero")
)

// Gate is the rate-limiting strategy a Limiter clears before each
// call. Wait blocks until a permit is available; OnThrottle reports a
// rejected call that started at the given time.
//
// *bucket.Bucket satisfies Gate.
type Gate interface {
	Wait(ctx context.Context) error
	OnThrottle(ctx context.Context, requestStartedAt time.Time) error
}

// Option is a functional option for configuring a [Limiter] via [New].
type Option func(*options) error

type options struct {
	classify    func(error) bool
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// WithThrottleErrors declares the sentinel errors that represent "the
// remote service throttled me", matched via errors.Is.
func WithThrottleErrors(errs ...error) Option {
	return func(o *options) error {
		if len(errs) == 0 {
			return errors.New("at least one throttle error is required")
		}

		o.classify = func(err error) bool {
			for _, target := range errs {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithClassifier supplies a predicate deciding whether an error is a
// throttle rejection. It overrides WithThrottleErrors.
func WithClassifier(fn func(error) bool) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("classifier must not be nil")
		}
		o.classify = fn
		return nil
	}
}

// WithMaxAttempts caps how many times a throttled call is attempted
// before giving up. Zero, the default, retries indefinitely.
func WithMaxAttempts(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max attempts must not be negative")
		}
		o.maxAttempts = n
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Limiter].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithNow replaces the limiter's wall clock, used to timestamp the
// start of each attempt for the gate's stale-report check.
func WithNow(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("now func must not be nil")
		}
		o.now = now
		return nil
	}
}
