// Package courtfeed scans court bulletin feeds for judgments outside the
// search API. Unlike search results, which are pre-filtered by query, feed
// entries are a full dump for the period, so each entry is matched locally
// against every active watch. Matched entries enter the store through the
// same conditional-insert pipeline as search results, deduplicated by their
// case-number + date composite key.
package courtfeed

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kalro/lexwatch/internal/config"
	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/matcher"
)

// Result holds the results of one feed scan.
type Result struct {
	Entries    int
	NewMatches int
	Errors     int
}

// Scanner fetches configured feeds and records matches.
type Scanner struct {
	db            *database.DB
	matcher       *matcher.Matcher
	sources       []config.FeedSource
	parser        *gofeed.Parser
	fetcher       *textFetcher
	fetchFullText bool
	lookbackDays  int
}

// New creates a feed scanner.
func New(cfg *config.Config, db *database.DB, m *matcher.Matcher) *Scanner {
	lookback := cfg.Polling.FirstPollLookbackDays
	if lookback <= 0 {
		lookback = 4
	}
	return &Scanner{
		db:            db,
		matcher:       m,
		sources:       cfg.Feeds.Sources,
		parser:        gofeed.NewParser(),
		fetcher:       newTextFetcher(15 * time.Second),
		fetchFullText: cfg.Feeds.FetchFullText,
		lookbackDays:  lookback,
	}
}

// Scan fetches every configured feed and matches recent entries against all
// active watches. A failing feed is logged and skipped; the scan continues
// with the remaining sources.
func (s *Scanner) Scan(ctx context.Context) *Result {
	result := &Result{}

	watches, err := s.db.GetActiveWatches()
	if err != nil {
		log.Printf("feed scan: fetching watches: %v", err)
		result.Errors++
		return result
	}
	if len(watches) == 0 || len(s.sources) == 0 {
		return result
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.lookbackDays)

	for _, source := range s.sources {
		feed, err := s.parser.ParseURLWithContext(source.URL, ctx)
		if err != nil {
			log.Printf("feed scan: parsing %s: %v", source.Name, err)
			result.Errors++
			continue
		}

		for _, item := range feed.Items {
			if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
				continue
			}
			result.Entries++
			result.NewMatches += s.matchEntry(ctx, source.Name, item, watches)
		}
	}

	log.Printf("feed scan complete: %d entries, %d new matches, %d errors",
		result.Entries, result.NewMatches, result.Errors)
	return result
}

// matchEntry matches one feed entry against all watches. The entry's full
// text is fetched at most once, and only when the title and summary alone
// do not decide for some watch.
func (s *Scanner) matchEntry(ctx context.Context, sourceName string, item *gofeed.Item, watches []database.Watch) int {
	if item.Title == "" || item.Link == "" {
		log.Printf("feed scan: entry missing title or link from %s, skipping", sourceName)
		return 0
	}

	summary := headText(item)
	fullText := ""
	fullTextFetched := false
	created := 0

	for i := range watches {
		w := &watches[i]

		matched := matchesWatch(w, item.Title+" "+summary)
		if !matched && s.fetchFullText {
			if !fullTextFetched {
				fullText = s.fetcher.fetch(ctx, item.Link)
				fullTextFetched = true
			}
			if fullText != "" {
				matched = matchesWatch(w, fullText)
			}
		}
		if !matched {
			continue
		}

		j := entryToJudgment(sourceName, item)
		snippet := extractSnippet(item.Title+" "+summary+" "+fullText, firstTerm(w))
		match, err := s.matcher.Record(w.ID, j, snippet)
		if err != nil {
			log.Printf("feed scan: recording entry %q for watch %d: %v", item.Title, w.ID, err)
			continue
		}
		if match != nil {
			created++
		}
	}

	return created
}

// entryToJudgment maps a feed entry to a judgment row. Feed documents have
// no stable external document ID; identity is the case reference (the
// entry's GUID or link) plus the published date, or always-new when the
// date is unknown.
func entryToJudgment(sourceName string, item *gofeed.Item) *database.Judgment {
	caseRef := item.GUID
	if caseRef == "" {
		caseRef = item.Link
	}

	j := &database.Judgment{
		Title:      item.Title,
		Court:      &sourceName,
		CaseNumber: &caseRef,
		Source:     database.SourceFeed,
		Metadata:   map[string]any{"link": item.Link},
	}
	if item.PublishedParsed != nil {
		d := item.PublishedParsed.UTC().Format("2006-01-02")
		j.JudgmentDate = &d
	}
	if summary := headText(item); summary != "" {
		j.Headline = &summary
	}
	return j
}

// headText returns a trimmed summary for the entry.
func headText(item *gofeed.Item) string {
	text := strings.TrimSpace(item.Description)
	if text == "" {
		text = strings.TrimSpace(item.Content)
	}
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}
