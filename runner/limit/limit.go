package limit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Limiter pairs a Gate with a throttle classifier and an attempt cap.
// It is safe for concurrent use; one Limiter is meant to front all
// workers sharing a rate-limited resource.
type Limiter struct {
	gate        Gate
	classify    func(error) bool
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Limiter over the given gate. By default throttle
// errors are recognized via the ErrThrottled sentinel, attempts are
// unlimited, and the default slog logger is used.
func New(gate Gate, optFns ...Option) (*Limiter, error) {
	if gate == nil {
		return nil, errors.New("gate must not be nil")
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying limiter option: %w", err)
		}
	}

	l := &Limiter{
		gate:        gate,
		classify:    opts.classify,
		maxAttempts: opts.maxAttempts,
		logger:      opts.logger,
		now:         opts.now,
	}
	if l.classify == nil {
		l.classify = func(err error) bool { return errors.Is(err, ErrThrottled) }
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}

	return l, nil
}

// Wrap gates fn on the limiter. Each invocation waits for a permit,
// then runs fn; a classified throttle error is reported to the gate
// (triggering its reduction and recovery pause) and the call retried.
// Any other error, and any successful result, passes through
// unchanged. When the attempt cap is reached the final throttle error
// is returned wrapped in ErrAttemptsExhausted.
func Wrap[T, R any](l *Limiter, fn func(ctx context.Context, in T) (R, error)) func(ctx context.Context, in T) (R, error) {
	return func(ctx context.Context, in T) (R, error) {
		var zero R

		for attempt := 1; ; attempt++ {
			if err := l.gate.Wait(ctx); err != nil {
				return zero, fmt.Errorf("acquiring permit: %w", err)
			}

			started := l.now()
			out, err := fn(ctx, in)
			if err == nil || !l.classify(err) {
				return out, err
			}

			l.logger.Info("call throttled by remote service", "attempt", attempt, "error", err)

			if terr := l.gate.OnThrottle(ctx, started); terr != nil {
				return zero, fmt.Errorf("throttle backoff: %w", terr)
			}

			if l.maxAttempts > 0 && attempt >= l.maxAttempts {
				return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
			}
		}
	}
}
