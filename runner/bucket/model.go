package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTokens = errors.New("no tokens available")
)

// Default values applied by New when the corresponding Config field
// is left at its zero value.
const (
	DefaultWindow          = time.Minute
	DefaultReductionFactor = 0.5
	DefaultCooldown        = 10 * time.Second
)

// Config defines the bucket's rate budget and its adaptation behavior.
// InitialRate is required. A zero MaxRate defaults to InitialRate,
// which disables growth entirely.
type Config struct {
	// InitialRate is the starting budget in requests per second.
	InitialRate float64
	// MaxRate caps how far sustained successful use can grow the rate.
	MaxRate float64
	// Window is the enforcement window: the bucket banks at most one
	// window's worth of permits, and going idle for longer than the
	// window resets the learned rate.
	Window time.Duration
	// ReductionFactor scales the rate on each applied throttle report.
	// Must be in (0, 1].
	ReductionFactor float64
	// IncreaseFactor is the exponent coefficient for growth on each
	// successful acquisition. Zero disables growth.
	IncreaseFactor float64
	// Cooldown is the minimum interval between two rate reductions,
	// and the mandatory pause imposed on the caller that reported
	// the throttle.
	Cooldown time.Duration
}

// withDefaults fills zero-valued fields with the documented defaults.
func (c Config) withDefaults() Config {
	if c.MaxRate == 0 {
		c.MaxRate = c.InitialRate
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.ReductionFactor == 0 {
		c.ReductionFactor = DefaultReductionFactor
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.InitialRate <= 0:
		return fmt.Errorf("initial rate[%g] must be greater than zero", c.InitialRate)
	case c.MaxRate < c.InitialRate:
		return fmt.Errorf("max rate[%g] must not be below initial rate[%g]", c.MaxRate, c.InitialRate)
	case c.Window <= 0:
		return fmt.Errorf("window[%s] must be greater than zero", c.Window)
	case c.ReductionFactor <= 0 || c.ReductionFactor > 1:
		return fmt.Errorf("reduction factor[%g] must be in (0, 1]", c.ReductionFactor)
	case c.IncreaseFactor < 0:
		return fmt.Errorf("increase factor[%g] must not be negative", c.IncreaseFactor)
	case c.Cooldown < 0:
		return fmt.Errorf("cooldown[%s] must not be negative", c.Cooldown)
	}

	return nil
}

// Clock abstracts wall-clock access so the bucket can be driven by a
// fake clock in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option is a functional option for configuring a [Bucket] via [New].
type Option func(*options) error

type options struct {
	clock Clock
}

// WithClock replaces the wall clock used for replenishment, growth,
// and cooldown pauses.
func WithClock(clk Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return errors.New("clock must not be nil")
		}
		o.clock = clk
		return nil
	}
}
