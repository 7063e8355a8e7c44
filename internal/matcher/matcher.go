// Package matcher reconciles search results against previously seen
// judgments. It prevents both missed judgments and duplicate alerts: a
// judgment row exists at most once per document, a match row at most once
// per (watch, judgment) pair, and only pairs created by this run are
// returned for notification.
package matcher

import (
	"log"

	"github.com/kalro/lexwatch/internal/database"
	"github.com/kalro/lexwatch/internal/search"
)

// Matcher records matches for search results.
type Matcher struct {
	db *database.DB
}

// New creates a Matcher backed by the given store.
func New(db *database.DB) *Matcher {
	return &Matcher{db: db}
}

// RecordMatches processes one watch's search results. Each document is
// conditionally inserted (conflicts silently absorbed by the storage
// constraints), then a (watch, judgment) match is conditionally inserted.
// Only newly created matches are returned; documents the watch has matched
// before are skipped without error. A malformed document is logged and
// skipped, never aborting the rest of the batch.
func (m *Matcher) RecordMatches(watchID int64, docs []search.Doc) []database.Match {
	var newMatches []database.Match

	for _, doc := range docs {
		j := docToJudgment(doc)
		if j == nil {
			log.Printf("doc missing required fields, skipping (tid=%d title=%q)", doc.TID, doc.Title)
			continue
		}

		var snippet *string
		if doc.Headline != "" {
			h := doc.Headline
			snippet = &h
		}

		match, err := m.Record(watchID, j, snippet)
		if err != nil {
			log.Printf("error processing doc %d for watch %d: %v", doc.TID, watchID, err)
			continue
		}
		if match != nil {
			newMatches = append(newMatches, *match)
		}
	}

	return newMatches
}

// Record inserts one judgment and its (watch, judgment) match. Returns the
// new match, or nil when the watch has already matched this judgment.
// Used directly by the feed scanner for documents that carry a case-number
// identity instead of an external document ID.
func (m *Matcher) Record(watchID int64, j *database.Judgment, snippet *string) (*database.Match, error) {
	judgmentID, _, err := m.db.InsertJudgment(j)
	if err != nil {
		return nil, err
	}

	matchID, created, err := m.db.InsertMatch(watchID, judgmentID, snippet)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	return &database.Match{
		ID:         matchID,
		WatchID:    watchID,
		JudgmentID: judgmentID,
		Snippet:    snippet,
	}, nil
}

// docToJudgment maps an API doc to a judgment row. Returns nil when the doc
// lacks the stable document identifier or a title.
func docToJudgment(doc search.Doc) *database.Judgment {
	if doc.TID == 0 || doc.Title == "" {
		return nil
	}

	tid := doc.TID
	j := &database.Judgment{
		DocID:    &tid,
		Title:    doc.Title,
		DocSize:  doc.DocSize,
		NumCites: doc.NumCites,
		Source:   database.SourceSearch,
	}
	if doc.DocSource != "" {
		s := doc.DocSource
		j.Court = &s
	}
	if doc.PublishDate != "" {
		d := doc.PublishDate
		j.JudgmentDate = &d
	}
	if doc.Headline != "" {
		h := doc.Headline
		j.Headline = &h
	}
	return j
}
