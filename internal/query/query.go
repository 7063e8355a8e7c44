// Package query builds search backend formInput strings from watch
// configurations. Pure string assembly, no I/O.
//
// Rules:
//  1. Entity and act terms are always quoted for exact-phrase matching.
//  2. Topic terms: comma-separated pieces are joined with ANDD (multi-word
//     pieces quoted); otherwise 1-2 words form a single term and 3+ bare
//     words each become an ANDD term.
//  3. Court filters append a doctypes: clause.
//  4. fromdate: is always present — open-ended ranges are forbidden.
//  5. Dates use the backend's DD-MM-YYYY format.
package query

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the backend's textual date layout.
const DateFormat = "02-01-2006"

// Build constructs a formInput query string for the search API.
// toDate may be nil (results up to present).
func Build(watchType, queryTerms string, courtFilter []string, fromDate time.Time, toDate *time.Time) (string, error) {
	var termsPart string

	switch watchType {
	case "entity", "act":
		termsPart = quote(strings.TrimSpace(queryTerms))
	case "topic":
		termsPart = topicTerms(queryTerms)
	default:
		return "", fmt.Errorf("unknown watch type: %q", watchType)
	}

	parts := []string{termsPart}
	if len(courtFilter) > 0 {
		parts = append(parts, "doctypes:"+strings.Join(courtFilter, ","))
	}
	parts = append(parts, "fromdate:"+fromDate.Format(DateFormat))
	if toDate != nil {
		parts = append(parts, "todate:"+toDate.Format(DateFormat))
	}

	return strings.Join(parts, " "), nil
}

// topicTerms joins semantically distinct phrases with the backend's ANDD
// boolean operator. Comma-separated input treats each piece as a phrase;
// otherwise short inputs stay a single term and longer ones split per word.
func topicTerms(queryTerms string) string {
	stripped := strings.TrimSpace(queryTerms)

	if strings.Contains(stripped, ",") {
		var terms []string
		for _, piece := range strings.Split(stripped, ",") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			if strings.Contains(piece, " ") {
				piece = quote(piece)
			}
			terms = append(terms, piece)
		}
		return strings.Join(terms, " ANDD ")
	}

	words := strings.Fields(stripped)
	if len(words) <= 2 {
		if len(words) > 1 {
			return quote(stripped)
		}
		return stripped
	}
	return strings.Join(words, " ANDD ")
}

func quote(s string) string {
	return `"` + s + `"`
}
