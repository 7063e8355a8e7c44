package search

import (
	"context"
	"sync"
	"time"
)

// rateGate enforces a minimum spacing between outbound calls across all
// concurrent callers. The mutex is held through the wait, so callers occupy
// the slot one at a time and bursts are smoothed rather than counted
// against a window.
type rateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateGate(interval time.Duration) *rateGate {
	return &rateGate{interval: interval}
}

// wait blocks until the minimum spacing since the previous call has
// elapsed, then claims the slot.
func (g *rateGate) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() {
		if remaining := g.interval - time.Since(g.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	g.last = time.Now()
	return nil
}
