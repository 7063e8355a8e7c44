// Package poll orchestrates watch polling: due-watch selection, query
// construction, paginated search, match recording, per-watch failure
// isolation, and the global pause-on-auth-failure policy.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/matcher"
	"github.com/kalro/lexwatch/internal/query"
	"github.com/kalro/lexwatch/internal/search"
)

// Searcher is the search client surface the engine needs. Satisfied by
// *search.Client.
type Searcher interface {
	Search(ctx context.Context, formInput string, page int, watchID *int64) (*search.Response, error)
}

// Alerter delivers critical operator alerts (global pause). Optional.
type Alerter interface {
	SendAdminAlert(ctx context.Context, subject, body string)
}

// DetailFetcher is the optional docmeta surface of the search client. When
// the Searcher also implements it, newly matched judgments are enriched
// with extended metadata.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, docID int64) (map[string]any, error)
}

// Config holds engine settings. Zero values fall back to defaults.
type Config struct {
	// Concurrency bounds how many watches poll in parallel within one
	// cycle. Default 1 (sequential). The shared rate gate is respected
	// either way.
	Concurrency int
	// MaxPages caps pagination per watch per poll. Default 5.
	MaxPages int
}

// CycleResult summarizes one polling cycle.
type CycleResult struct {
	Due        int
	Polled     int
	Failed     int
	NewMatches int
	Paused     bool
}

// Engine runs polling cycles and on-demand poll requests.
type Engine struct {
	db      *database.DB
	client  Searcher
	matcher *matcher.Matcher
	alerter Alerter

	concurrency int
	maxPages    int

	// Watch-local backoff after 429/5xx/timeout. In-memory by design:
	// rate limits are temporary and the global pause is what must survive
	// restarts.
	mu       sync.Mutex
	backoffs map[int64]time.Time
}

// New creates a polling engine.
func New(db *database.DB, client Searcher, m *matcher.Matcher, alerter Alerter, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	return &Engine{
		db:          db,
		client:      client,
		matcher:     m,
		alerter:     alerter,
		concurrency: cfg.Concurrency,
		maxPages:    cfg.MaxPages,
		backoffs:    make(map[int64]time.Time),
	}
}

// RunCycle executes one polling cycle across all due watches. A no-op while
// the global mode is Paused. Any error for one watch (other than auth) is
// logged and skipped; an auth error pauses the system and aborts the
// remainder of the cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	paused, reason, err := e.db.IsPollingPaused()
	if err != nil {
		return nil, fmt.Errorf("reading polling state: %w", err)
	}
	if paused {
		log.Printf("polling paused (%s), skipping cycle", reason)
		return &CycleResult{Paused: true}, nil
	}

	watches, err := e.db.GetActiveWatches()
	if err != nil {
		return nil, fmt.Errorf("fetching watches: %w", err)
	}

	now := time.Now().UTC()
	var due []database.Watch
	for _, w := range watches {
		if e.isDue(&w, now) {
			due = append(due, w)
		}
	}

	result := &CycleResult{Due: len(due)}
	var resultMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, w := range due {
		w := w
		g.Go(func() error {
			// Once an auth error cancels the group, later watches are
			// not attempted.
			if gctx.Err() != nil {
				return nil
			}
			matches, err := e.pollIsolated(gctx, &w)

			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				result.Failed++
				// Only auth failures abort the cycle; everything else is
				// already logged and fatal to this watch alone.
				if errors.Is(err, search.ErrAuth) {
					return err
				}
				return nil
			}
			result.Polled++
			result.NewMatches += len(matches)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, search.ErrAuth) {
			e.pauseForAuthFailure(ctx)
			result.Paused = true
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// pollIsolated polls one watch, converting everything except auth failures
// into a logged skip. Transient backend errors double the watch's effective
// interval instead of pausing anything globally.
func (e *Engine) pollIsolated(ctx context.Context, w *database.Watch) ([]database.Match, error) {
	matches, err := e.PollWatch(ctx, w)
	if err == nil {
		return matches, nil
	}

	if errors.Is(err, search.ErrAuth) {
		return nil, err
	}

	var serverErr *search.ServerError
	if errors.Is(err, search.ErrRateLimited) || errors.Is(err, search.ErrTimeout) || errors.As(err, &serverErr) {
		until := e.applyBackoff(w)
		log.Printf("transient error polling watch %d (%s): %v — backing off until %s",
			w.ID, w.Name, err, until.Format(time.RFC3339))
	} else {
		log.Printf("error polling watch %d (%s): %v", w.ID, w.Name, err)
	}
	return nil, fmt.Errorf("polling watch %d: %w", w.ID, err)
}

// PollWatch runs the single-watch pipeline: build query, fetch page 0 and
// further pages only while the backend reports more, record matches, update
// the watch's polling state. Used by both the cycle and the on-demand
// handler (which bypasses the due check).
func (e *Engine) PollWatch(ctx context.Context, w *database.Watch) ([]database.Match, error) {
	fromDate, err := e.dateFloor(w)
	if err != nil {
		return nil, err
	}

	q, err := query.Build(w.Type, w.QueryTerms, w.CourtFilter, fromDate, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Search(ctx, q, 0, &w.ID)
	if err != nil {
		return nil, err
	}

	docs := resp.Docs
	pageSize := len(resp.Docs)
	for page := 1; pageSize > 0 && len(docs) < resp.Found && page < e.maxPages; page++ {
		next, err := e.client.Search(ctx, q, page, &w.ID)
		if err != nil {
			return nil, err
		}
		if len(next.Docs) == 0 {
			break
		}
		docs = append(docs, next.Docs...)
	}

	matches := e.matcher.RecordMatches(w.ID, docs)
	e.enrichMatches(ctx, matches)

	if err := e.db.UpdateWatchPolled(w.ID, len(docs)); err != nil {
		log.Printf("failed to update poll state for watch %d: %v", w.ID, err)
	}

	return matches, nil
}

// enrichMatches pulls extended docmeta for newly matched judgments and
// merges it into their metadata bags. Best-effort: enrichment failures are
// logged and never fail the poll. Only new matches are enriched, so the
// extra API calls stay bounded by the number of fresh results.
func (e *Engine) enrichMatches(ctx context.Context, matches []database.Match) {
	fetcher, ok := e.client.(DetailFetcher)
	if !ok {
		return
	}

	for _, m := range matches {
		j, err := e.db.GetJudgment(m.JudgmentID)
		if err != nil || j == nil || j.DocID == nil {
			continue
		}
		meta, err := fetcher.FetchDetail(ctx, *j.DocID)
		if err != nil {
			log.Printf("detail fetch failed for judgment %d (doc %d): %v", j.ID, *j.DocID, err)
			continue
		}
		if err := e.db.MergeJudgmentMetadata(j.ID, meta); err != nil {
			log.Printf("failed to merge metadata for judgment %d: %v", j.ID, err)
		}
	}
}

// dateFloor returns the lower-bound date for the watch's query: the last
// successful poll, or the watch's creation date if never polled. A query
// without a date floor is never built.
func (e *Engine) dateFloor(w *database.Watch) (time.Time, error) {
	ref := w.CreatedAt
	if w.LastPolledAt != nil {
		ref = *w.LastPolledAt
	}
	t, err := database.ParseTime(ref)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date floor for watch %d: %w", w.ID, err)
	}
	return t, nil
}

// isDue reports whether the watch's interval has elapsed and it is not in
// a transient backoff window.
func (e *Engine) isDue(w *database.Watch, now time.Time) bool {
	e.mu.Lock()
	until, backing := e.backoffs[w.ID]
	if backing && now.After(until) {
		delete(e.backoffs, w.ID)
		backing = false
	}
	e.mu.Unlock()
	if backing {
		return false
	}

	if w.LastPolledAt == nil {
		return true
	}
	last, err := database.ParseTime(*w.LastPolledAt)
	if err != nil {
		log.Printf("invalid last_polled_at for watch %d: %v", w.ID, err)
		return true
	}
	interval := time.Duration(w.PollingIntervalMinutes) * time.Minute
	return now.Sub(last) >= interval
}

// applyBackoff doubles the watch's effective interval and returns the time
// it becomes eligible again.
func (e *Engine) applyBackoff(w *database.Watch) time.Time {
	until := time.Now().UTC().Add(2 * time.Duration(w.PollingIntervalMinutes) * time.Minute)
	e.mu.Lock()
	e.backoffs[w.ID] = until
	e.mu.Unlock()
	return until
}

// pauseForAuthFailure persists the global pause and alerts the operator.
// There is no automatic transition back; an explicit resume is required.
func (e *Engine) pauseForAuthFailure(ctx context.Context) {
	log.Printf("search API auth error (403) — pausing ALL polling until operator resume")
	if err := e.db.PausePolling("search API authentication failure (403)"); err != nil {
		log.Printf("failed to persist pause state: %v", err)
	}
	if e.alerter != nil {
		e.alerter.SendAdminAlert(ctx,
			"Search API Authentication Failure (403)",
			"The judgment search API returned 403 Forbidden.\n"+
				"ALL polling has been paused.\n\n"+
				"Verify the API token, then run 'lexwatch resume'.",
		)
	}
}
