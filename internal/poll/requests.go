package poll

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/search"
)

// ProcessPollRequests drains pending on-demand poll requests. Each request
// runs the same single-watch pipeline as a normal cycle, bypassing the
// interval check; last_polled_at is updated exactly as a scheduled poll
// would, which pushes the watch's next scheduled poll further out. Paused
// mode applies here too: requests stay pending until the operator resumes.
func (e *Engine) ProcessPollRequests(ctx context.Context) error {
	paused, _, err := e.db.IsPollingPaused()
	if err != nil {
		return fmt.Errorf("reading polling state: %w", err)
	}
	if paused {
		return nil
	}

	requests, err := e.db.GetPendingPollRequests()
	if err != nil {
		return fmt.Errorf("fetching poll requests: %w", err)
	}

	for _, req := range requests {
		claimed, err := e.db.ClaimPollRequest(req.ID)
		if err != nil {
			log.Printf("error claiming poll request %s: %v", req.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		if err := e.processRequest(ctx, &req); err != nil {
			msg := err.Error()
			if ferr := e.db.FinishPollRequest(req.ID, database.RequestFailed, &msg); ferr != nil {
				log.Printf("failed to update poll request %s: %v", req.ID, ferr)
			}
			if errors.Is(err, search.ErrAuth) {
				e.pauseForAuthFailure(ctx)
				return nil
			}
			continue
		}

		if err := e.db.FinishPollRequest(req.ID, database.RequestDone, nil); err != nil {
			log.Printf("failed to update poll request %s: %v", req.ID, err)
		}
	}

	return nil
}

func (e *Engine) processRequest(ctx context.Context, req *database.PollRequest) error {
	w, err := e.db.GetWatch(req.WatchID)
	if err != nil {
		return fmt.Errorf("fetching watch %d: %w", req.WatchID, err)
	}
	if w == nil {
		return fmt.Errorf("watch %d not found", req.WatchID)
	}

	matches, err := e.PollWatch(ctx, w)
	if err != nil {
		log.Printf("on-demand poll failed for watch %d (%s): %v", w.ID, w.Name, err)
		return err
	}

	log.Printf("on-demand poll for watch %d (%s): %d new match(es)", w.ID, w.Name, len(matches))
	return nil
}
