package bucket

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock. When autoAdvance is set,
// Sleep moves time forward by the requested duration, letting Wait
// make progress without real sleeping.
type fakeClock struct {
	mu          sync.Mutex
	now         time.Time
	slept       []time.Duration
	autoAdvance bool
}

func newFakeClock(autoAdvance bool) *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), autoAdvance: autoAdvance}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	if c.autoAdvance {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func newBucket(t *testing.T, cfg Config, clk Clock) *Bucket {
	t.Helper()

	b, err := New(cfg, WithClock(clk))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAvailable_LinearGrowthAndCap(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1, Window: time.Minute}, clk)

	if got := b.Available(); !almostEqual(got, 0) {
		t.Fatalf("new bucket should be empty, got %g", got)
	}

	clk.Advance(30 * time.Second)
	if got := b.Available(); !almostEqual(got, 30) {
		t.Errorf("after 30s at 1 rps, want 30 tokens, got %g", got)
	}

	clk.Advance(90 * time.Second)
	if got := b.Available(); !almostEqual(got, 60) {
		t.Errorf("tokens must cap at rate*window=60, got %g", got)
	}

	if got := b.Rate(); !almostEqual(got, 1) {
		t.Errorf("Available must not mutate rate, got %g", got)
	}
}

func TestTryAcquire_EmptyBucket(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1}, clk)

	if err := b.TryAcquire(); !errors.Is(err, ErrNoTokens) {
		t.Fatalf("expected ErrNoTokens, got %v", err)
	}

	clk.Advance(time.Second)
	if err := b.TryAcquire(); err != nil {
		t.Fatalf("expected acquisition after 1s, got %v", err)
	}
	if err := b.TryAcquire(); !errors.Is(err, ErrNoTokens) {
		t.Errorf("token should have been spent, got %v", err)
	}
}

func TestTryAcquire_GrowsRateExponentially(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1, MaxRate: 100, IncreaseFactor: 0.1, Window: time.Minute}, clk)

	clk.Advance(10 * time.Second)
	if err := b.TryAcquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := math.Exp(0.1 * 10) // 1 * e^(increase*elapsed)
	if got := b.Rate(); !almostEqual(got, want) {
		t.Errorf("want rate %g, got %g", want, got)
	}
}

func TestTryAcquire_GrowthCappedAtMaxRate(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1, MaxRate: 2, IncreaseFactor: 1, Window: time.Minute}, clk)

	clk.Advance(30 * time.Second)
	if err := b.TryAcquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := b.Rate(); !almostEqual(got, 2) {
		t.Errorf("rate must cap at MaxRate=2, got %g", got)
	}
}

func TestTryAcquire_IdleResetsLearnedRate(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1, MaxRate: 100, IncreaseFactor: 0.5, Window: time.Minute}, clk)

	// Grow the rate well above initial.
	clk.Advance(20 * time.Second)
	if err := b.TryAcquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Rate(); got <= 1 {
		t.Fatalf("rate should have grown, got %g", got)
	}

	// Longer than the window with no activity: next acquisition
	// succeeds but the bucket goes cold.
	clk.Advance(61 * time.Second)
	if err := b.TryAcquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := b.Rate(); !almostEqual(got, 1) {
		t.Errorf("idle bucket must reset to InitialRate, got %g", got)
	}
	if got := b.Available(); !almostEqual(got, 0) {
		t.Errorf("idle reset must drain banked tokens, got %g", got)
	}
}

func TestOnThrottle_ReducesOncePerCooldown(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 8, Window: time.Minute, ReductionFactor: 0.5, Cooldown: 5 * time.Second}, clk)

	started := clk.Now()
	if err := b.OnThrottle(context.Background(), started); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Rate(); !almostEqual(got, 4) {
		t.Fatalf("want rate 4 after reduction, got %g", got)
	}

	// A second report inside the cooldown is ignored even though the
	// request was issued after the adjustment.
	clk.Advance(time.Second)
	if err := b.OnThrottle(context.Background(), clk.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Rate(); !almostEqual(got, 4) {
		t.Errorf("reduction inside cooldown must be ignored, got rate %g", got)
	}

	// After the cooldown passes, a fresh report cuts again.
	clk.Advance(5 * time.Second)
	if err := b.OnThrottle(context.Background(), clk.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.Rate(); !almostEqual(got, 2) {
		t.Errorf("want rate 2 after second reduction, got %g", got)
	}
}

func TestOnThrottle_StaleReportIgnored(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 8, Window: time.Minute, ReductionFactor: 0.5, Cooldown: time.Second}, clk)

	if err := b.OnThrottle(context.Background(), clk.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reduced := b.Rate()

	// Issued before the adjustment above; must not compound even
	// though the cooldown has long passed.
	stale := clk.Now().Add(-time.Minute)
	clk.Advance(time.Minute)
	if err := b.OnThrottle(context.Background(), stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := b.Rate(); !almostEqual(got, reduced) {
		t.Errorf("stale report must be ignored: want %g, got %g", reduced, got)
	}
}

func TestOnThrottle_DrainsTokensAndPauses(t *testing.T) {
	clk := newFakeClock(false)
	cooldown := 3 * time.Second
	b := newBucket(t, Config{InitialRate: 2, Window: time.Minute, Cooldown: cooldown}, clk)

	clk.Advance(10 * time.Second)
	if got := b.Available(); got <= 0 {
		t.Fatalf("expected banked tokens, got %g", got)
	}

	if err := b.OnThrottle(context.Background(), clk.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := b.Available(); !almostEqual(got, 0) {
		t.Errorf("applied reduction must drain tokens, got %g", got)
	}

	slept := clk.sleeps()
	if len(slept) != 1 || slept[0] != cooldown {
		t.Errorf("expected a single %s recovery pause, got %v", cooldown, slept)
	}
}

func TestWait_SleepsUntilNextToken(t *testing.T) {
	clk := newFakeClock(true)
	b := newBucket(t, Config{InitialRate: 1}, clk)

	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slept := clk.sleeps()
	if len(slept) == 0 {
		t.Fatal("expected Wait to sleep for the first token")
	}
	if slept[0] != time.Second {
		t.Errorf("empty bucket at 1 rps should sleep 1s, slept %v", slept[0])
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	clk := newFakeClock(false)
	b := newBucket(t, Config{InitialRate: 1}, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero initial rate", Config{}},
		{"negative initial rate", Config{InitialRate: -1}},
		{"max below initial", Config{InitialRate: 10, MaxRate: 5}},
		{"reduction factor above one", Config{InitialRate: 1, ReductionFactor: 1.5}},
		{"negative increase factor", Config{InitialRate: 1, IncreaseFactor: -0.1}},
		{"negative window", Config{InitialRate: 1, Window: -time.Second}},
		{"negative cooldown", Config{InitialRate: 1, Cooldown: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected config error, got nil")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(Config{InitialRate: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := b.cfg.MaxRate; !almostEqual(got, 3) {
		t.Errorf("zero MaxRate should default to InitialRate, got %g", got)
	}
	if b.cfg.Window != DefaultWindow {
		t.Errorf("want default window %s, got %s", DefaultWindow, b.cfg.Window)
	}
	if !almostEqual(b.cfg.ReductionFactor, DefaultReductionFactor) {
		t.Errorf("want default reduction factor %g, got %g", DefaultReductionFactor, b.cfg.ReductionFactor)
	}
	if b.cfg.Cooldown != DefaultCooldown {
		t.Errorf("want default cooldown %s, got %s", DefaultCooldown, b.cfg.Cooldown)
	}
}
