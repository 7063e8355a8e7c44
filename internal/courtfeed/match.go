package courtfeed

import (
	"strings"

	"github.com/kalro/lexwatch/internal/database"
)

// matchesWatch reports whether the searchable text satisfies the watch's
// query terms. Matching is boolean only; the relevance-score column stays
// reserved.
//
// Strategy by watch type:
//   - entity: exact phrase must appear
//   - topic: every term must appear (AND logic)
//   - act: exact phrase of the act name must appear
func matchesWatch(w *database.Watch, searchable string) bool {
	terms := strings.TrimSpace(w.QueryTerms)
	if terms == "" {
		return false
	}
	haystack := strings.ToLower(searchable)

	switch w.Type {
	case database.WatchEntity, database.WatchAct:
		return strings.Contains(haystack, strings.ToLower(terms))
	case database.WatchTopic:
		for _, term := range topicPieces(terms) {
			if !strings.Contains(haystack, strings.ToLower(term)) {
				return false
			}
		}
		return true
	}
	return false
}

// topicPieces splits topic terms the same way the query builder does:
// comma-separated phrases, or individual words.
func topicPieces(terms string) []string {
	if strings.Contains(terms, ",") {
		var pieces []string
		for _, p := range strings.Split(terms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pieces = append(pieces, p)
			}
		}
		return pieces
	}
	return strings.Fields(terms)
}

// firstTerm returns the leading term used to anchor the snippet.
func firstTerm(w *database.Watch) string {
	pieces := topicPieces(strings.TrimSpace(w.QueryTerms))
	if w.Type != database.WatchTopic {
		return strings.TrimSpace(w.QueryTerms)
	}
	if len(pieces) == 0 {
		return ""
	}
	return pieces[0]
}

// snippetRadius is how much context surrounds the matched term.
const snippetRadius = 100

// extractSnippet returns text around the first occurrence of term, or nil
// when the term is not present.
func extractSnippet(text, term string) *string {
	if term == "" {
		return nil
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 {
		return nil
	}

	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + snippetRadius
	if end > len(text) {
		end = len(text)
	}

	snippet := strings.TrimSpace(text[start:end])
	if snippet == "" {
		return nil
	}
	return &snippet
}
