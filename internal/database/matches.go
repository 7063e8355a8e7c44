package database

import (
	"fmt"
	"strings"
)

// InsertMatch conditionally inserts a (watch, judgment) match and reports
// whether a new row was created. The unique pair constraint makes re-runs
// and overlapping result sets a silent no-op, never an error.
func (db *DB) InsertMatch(watchID, judgmentID int64, snippet *string) (int64, bool, error) {
	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO watch_matches (watch_id, judgment_id, matched_at, snippet)
		VALUES (?, ?, ?, ?)`,
		watchID, judgmentID, Now(), snippet,
	)
	if err != nil {
		return 0, false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := result.LastInsertId()
	return id, true, err
}

// GetPendingMatches returns unnotified matches that have not exhausted their
// delivery attempts, joined with judgment data and watch name.
func (db *DB) GetPendingMatches(maxRetries, limit int) ([]PendingMatch, error) {
	rows, err := db.conn.Query(
		pendingMatchSelect+`
		WHERE m.is_notified = 0 AND m.retry_count < ?
		ORDER BY m.matched_at ASC LIMIT ?`,
		maxRetries, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingMatches(rows)
}

// GetMatchesSince returns all matches (notified or not) created at or after
// the given timestamp, for the daily digest.
func (db *DB) GetMatchesSince(since string) ([]PendingMatch, error) {
	rows, err := db.conn.Query(
		pendingMatchSelect+` WHERE m.matched_at >= ? ORDER BY m.matched_at ASC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingMatches(rows)
}

// GetMatchesForWatch returns all matches for one watch, newest first.
func (db *DB) GetMatchesForWatch(watchID int64) ([]PendingMatch, error) {
	rows, err := db.conn.Query(
		pendingMatchSelect+` WHERE m.watch_id = ? ORDER BY m.matched_at DESC`,
		watchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPendingMatches(rows)
}

// MarkMatchesNotified sets is_notified and the notified-at timestamp for
// the given match IDs.
func (db *DB) MarkMatchesNotified(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE watch_matches SET is_notified = 1, notified_at = ? WHERE id IN (%s)",
		placeholders(len(ids)),
	)
	args := make([]any, 0, len(ids)+1)
	args = append(args, Now())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.conn.Exec(query, args...)
	return err
}

// IncrementMatchRetries bumps the delivery retry counter for the given
// match IDs after a failed dispatch.
func (db *DB) IncrementMatchRetries(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"UPDATE watch_matches SET retry_count = retry_count + 1 WHERE id IN (%s)",
		placeholders(len(ids)),
	)
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.conn.Exec(query, args...)
	return err
}

const pendingMatchSelect = `SELECT m.id, m.watch_id, m.judgment_id, m.matched_at,
	m.relevance_score, m.snippet, m.is_notified, m.notified_at, m.retry_count,
	w.name,
	j.id, j.doc_id, j.title, j.court, j.judgment_date, j.doc_size, j.num_cites,
	j.headline, j.case_number, j.source, j.first_seen_at
	FROM watch_matches m
	JOIN watches w ON w.id = m.watch_id
	JOIN judgments j ON j.id = m.judgment_id`

func scanPendingMatches(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]PendingMatch, error) {
	var matches []PendingMatch
	for rows.Next() {
		var pm PendingMatch
		var notified int
		if err := rows.Scan(&pm.ID, &pm.WatchID, &pm.JudgmentID, &pm.MatchedAt,
			&pm.RelevanceScore, &pm.Snippet, &notified, &pm.NotifiedAt, &pm.RetryCount,
			&pm.WatchName,
			&pm.Judgment.ID, &pm.Judgment.DocID, &pm.Judgment.Title, &pm.Judgment.Court,
			&pm.Judgment.JudgmentDate, &pm.Judgment.DocSize, &pm.Judgment.NumCites,
			&pm.Judgment.Headline, &pm.Judgment.CaseNumber, &pm.Judgment.Source,
			&pm.Judgment.FirstSeenAt); err != nil {
			return nil, err
		}
		pm.IsNotified = notified != 0
		matches = append(matches, pm)
	}
	return matches, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
