package bucket

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Bucket is a token bucket whose refill rate adapts to observed
// throttling. All methods are safe for concurrent use; a single Bucket
// is meant to be shared by every worker driving one rate-limited
// resource.
type Bucket struct {
	mu  sync.Mutex
	cfg Config
	clk Clock

	rate           float64 // permitted requests per second
	tokens         float64 // banked permits, 0 <= tokens <= rate * window seconds
	lastChecked    time.Time
	lastRateChange time.Time // growth anchor: any rate adjustment, up or down
	lastReduction  time.Time // debounce anchor: reductions only
}

// New creates a Bucket from cfg, applying documented defaults to
// zero-valued fields. The bucket starts empty: the first permit becomes
// available after 1/InitialRate seconds.
func New(cfg Config, optFns ...Option) (*Bucket, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying bucket option: %w", err)
		}
	}

	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("bucket config: %w", err)
	}

	clk := opts.clock
	if clk == nil {
		clk = realClock{}
	}

	now := clk.Now()

	return &Bucket{
		cfg:            cfg,
		clk:            clk,
		rate:           cfg.InitialRate,
		lastChecked:    now,
		lastRateChange: now,
	}, nil
}

// Available replenishes the bucket and reports how many calls may be
// made right now. It never mutates the rate.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.replenish(b.clk.Now())

	return b.tokens
}

// Rate reports the current permitted requests per second.
func (b *Bucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rate
}

// TryAcquire attempts to spend one token without blocking. It returns
// ErrNoTokens, leaving the bucket unchanged, when no full token is
// banked. A successful acquisition applies the growth step.
func (b *Bucket) TryAcquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clk.Now()
	b.replenish(now)

	if b.tokens < 1 {
		return ErrNoTokens
	}

	b.tokens--
	b.grow(now)

	return nil
}

// Wait blocks until a token is acquired or ctx is done. Waiting
// goroutines sleep for the estimated time until the next full token
// rather than spinning.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.clk.Now()
		b.replenish(now)

		if b.tokens >= 1 {
			b.tokens--
			b.grow(now)
			b.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		if wait < 0 {
			wait = 0
		}
		if err := b.clk.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("waiting for token: %w", err)
		}
	}
}

// OnThrottle feeds a throttle response back into the bucket.
// requestStartedAt must be the time the rejected call was issued:
// reports from calls issued before the last reduction are stale and
// ignored, as is any report within Cooldown of the last reduction. An
// applied reduction multiplies the rate by ReductionFactor, drains all
// banked tokens, and blocks the caller for Cooldown to force a minimum
// recovery pause.
func (b *Bucket) OnThrottle(ctx context.Context, requestStartedAt time.Time) error {
	b.mu.Lock()

	now := b.clk.Now()
	if requestStartedAt.Before(b.lastReduction) {
		b.mu.Unlock()
		return nil
	}
	if !b.lastReduction.IsZero() && now.Sub(b.lastReduction) < b.cfg.Cooldown {
		b.mu.Unlock()
		return nil
	}

	b.rate *= b.cfg.ReductionFactor
	b.tokens = 0
	b.lastRateChange = now
	b.lastReduction = now
	b.mu.Unlock()

	if err := b.clk.Sleep(ctx, b.cfg.Cooldown); err != nil {
		return fmt.Errorf("cooldown pause: %w", err)
	}

	return nil
}

// replenish banks tokens for the time elapsed since the last check,
// clamped to one window's worth at the current rate.
// Callers must hold b.mu.
func (b *Bucket) replenish(now time.Time) {
	if elapsed := now.Sub(b.lastChecked).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rate
	}

	if limit := b.rate * b.cfg.Window.Seconds(); b.tokens > limit {
		b.tokens = limit
	}
	if b.tokens < 0 {
		b.tokens = 0
	}

	b.lastChecked = now
}

// grow applies the post-acquisition rate adjustment. A bucket idle for
// longer than its window is cold: it forgets learned growth and
// restarts at InitialRate with nothing banked. Otherwise the rate grows
// exponentially with the time since the last change, capped at MaxRate.
// Callers must hold b.mu.
func (b *Bucket) grow(now time.Time) {
	elapsed := now.Sub(b.lastRateChange)

	if elapsed > b.cfg.Window {
		b.rate = b.cfg.InitialRate
		b.tokens = 0
	} else {
		b.rate = math.Min(b.rate*math.Exp(b.cfg.IncreaseFactor*elapsed.Seconds()), b.cfg.MaxRate)
	}

	b.lastRateChange = now
}
