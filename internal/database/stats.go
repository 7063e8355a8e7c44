package database

import (
	"time"
)

// GetStats returns aggregate counts for the status surfaces.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM watches", &s.TotalWatches},
		{"SELECT COUNT(*) FROM watches WHERE is_active = 1", &s.ActiveWatches},
		{"SELECT COUNT(*) FROM judgments", &s.TotalJudgments},
		{"SELECT COUNT(*) FROM watch_matches", &s.TotalMatches},
		{"SELECT COUNT(*) FROM watch_matches WHERE is_notified = 0", &s.UnnotifiedMatches},
		{"SELECT COUNT(*) FROM poll_requests WHERE status = 'pending'", &s.PendingPollRequests},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	calls, err := db.CountAPICallsSince(dayStart)
	if err != nil {
		return nil, err
	}
	s.APICallsToday = calls

	return s, nil
}
