package runner

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// tracker drives the caller's progress callback and logs run progress
// at most once per second as slots complete.
type tracker struct {
	mu        sync.Mutex
	completed int
	total     int
	callback  func(completed, total int)
	logger    *slog.Logger
	startTime time.Time
	lastLog   time.Time
}

func newTracker(total int, callback func(int, int), logger *slog.Logger) *tracker {
	return &tracker{
		total:     total,
		callback:  callback,
		logger:    logger,
		startTime: time.Now(),
	}
}

// done records one completed (or fallback-filled) slot. Callback
// invocations are serialized under the tracker's mutex so counts
// arrive in order.
func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed++

	if t.callback != nil {
		t.callback(t.completed, t.total)
	}

	if time.Since(t.lastLog) >= time.Second || t.completed == t.total {
		t.lastLog = time.Now()
		t.log()
	}
}

func (t *tracker) log() {
	elapsed := time.Since(t.startTime)
	t.logger.Info("progress",
		"completed", t.completed,
		"total", t.total,
		"percent", fmt.Sprintf("%.1f%%", float64(t.completed)/float64(t.total)*100),
		"elapsed", elapsed.Round(time.Millisecond),
		"ips", fmt.Sprintf("%.2f", float64(t.completed)/elapsed.Seconds()),
	)
}
