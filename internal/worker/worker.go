// Package worker runs the long-lived service loops: the polling cycle,
// on-demand request processing, notification dispatch, the daily digest,
// and the optional feed scan. Each loop ticks on its own interval and all
// of them stop together when the context is cancelled.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kalro/lexwatch/internal/config"
	"github.com/kalro/lexwatch/internal/courtfeed"
	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/notify"
	"github.com/kalro/lexwatch/internal/poll"
)

// Worker coordinates the periodic loops of the service.
type Worker struct {
	cfg      *config.Config
	db       *database.DB
	engine   *poll.Engine
	notifier *notify.Notifier
	scanner  *courtfeed.Scanner // nil when feeds are disabled
}

// New creates a Worker. Pass a nil scanner when feed scanning is disabled.
func New(cfg *config.Config, db *database.DB, engine *poll.Engine, notifier *notify.Notifier, scanner *courtfeed.Scanner) *Worker {
	return &Worker{cfg: cfg, db: db, engine: engine, notifier: notifier, scanner: scanner}
}

// Run starts all loops and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	start := func(name string, loop func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx)
			log.Printf("%s loop stopped", name)
		}()
	}

	if w.cfg.Polling.Enabled {
		start("polling", w.pollLoop)
	} else {
		log.Printf("scheduled polling disabled by config")
	}
	start("poll-request", w.requestLoop)
	start("dispatch", w.dispatchLoop)
	if w.cfg.Notifications.Digest.Enabled {
		start("digest", w.digestLoop)
	}
	if w.scanner != nil && w.cfg.Feeds.Enabled {
		start("feed-scan", w.feedLoop)
	}

	log.Printf("worker started")
	wg.Wait()
}

// pollLoop runs one polling cycle immediately, then on every tick.
func (w *Worker) pollLoop(ctx context.Context) {
	interval := minutes(w.cfg.Polling.CycleMinutes, 30)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	result, err := w.engine.RunCycle(ctx)
	if err != nil {
		log.Printf("polling cycle failed: %v", err)
		return
	}
	if result.Paused {
		return
	}
	log.Printf("polling cycle: %d due, %d polled, %d failed, %d new matches",
		result.Due, result.Polled, result.Failed, result.NewMatches)
}

// requestLoop drains on-demand poll requests at a short interval so the
// admin API feels responsive.
func (w *Worker) requestLoop(ctx context.Context) {
	interval := seconds(w.cfg.Polling.RequestCheckSeconds, 30)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.engine.ProcessPollRequests(ctx); err != nil {
				log.Printf("processing poll requests: %v", err)
			}
		}
	}
}

func (w *Worker) dispatchLoop(ctx context.Context) {
	interval := minutes(w.cfg.Polling.DispatchMinutes, 10)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := w.notifier.DispatchPending(ctx)
			if err != nil {
				log.Printf("dispatching notifications: %v", err)
				continue
			}
			if result.Watches > 0 {
				log.Printf("dispatch: %d watch batches, %d delivered, %d failed",
					result.Watches, result.Delivered, result.Failed)
			}
		}
	}
}

// digestLoop fires once a day at the configured local hour.
func (w *Worker) digestLoop(ctx context.Context) {
	for {
		next := nextDigestTime(time.Now(), w.cfg.Notifications.Digest.Hour)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := w.notifier.SendDailyDigest(ctx); err != nil {
				log.Printf("sending daily digest: %v", err)
			}
		}
	}
}

func (w *Worker) feedLoop(ctx context.Context) {
	interval := time.Duration(w.cfg.Feeds.ScanHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.scanner.Scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scanner.Scan(ctx)
		}
	}
}

// nextDigestTime returns the next occurrence of the given local hour,
// today if it has not passed yet, otherwise tomorrow.
func nextDigestTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func minutes(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Minute
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
