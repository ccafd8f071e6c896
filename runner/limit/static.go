package limit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Static is a Gate with a fixed requests-per-second budget, for
// providers whose limits are known up front and don't need to be
// learned.
type Static struct {
	limiter *rate.Limiter
}

// NewStatic returns a Static gate permitting rps requests per second
// with the given burst capacity.
func NewStatic(rps, burst int) (*Static, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustBePositive)
	}

	return &Static{limiter: rate.NewLimiter(rate.Limit(rps), burst)}, nil
}

// Wait blocks until the budget permits another call.
func (s *Static) Wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("limiter waiting failed: %w", err)
	}

	return nil
}

// OnThrottle is a no-op: a fixed budget has nothing to learn from a
// rejection.
func (s *Static) OnThrottle(context.Context, time.Time) error { return nil }
