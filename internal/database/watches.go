package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// MinPollingIntervalMinutes is the floor for watch polling intervals.
const MinPollingIntervalMinutes = 120

// InsertWatch creates a new watch and returns its ID. The polling interval
// is clamped to the floor; the watch type must be one of entity/topic/act.
func (db *DB) InsertWatch(name, watchType, queryTerms string, courtFilter []string, intervalMinutes int) (int64, error) {
	switch watchType {
	case WatchEntity, WatchTopic, WatchAct:
	default:
		return 0, fmt.Errorf("unknown watch type: %q", watchType)
	}
	if intervalMinutes < MinPollingIntervalMinutes {
		intervalMinutes = MinPollingIntervalMinutes
	}

	filter, err := marshalCourtFilter(courtFilter)
	if err != nil {
		return 0, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO watches (name, watch_type, query_terms, court_filter, polling_interval_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		name, watchType, queryTerms, filter, intervalMinutes, Now(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetWatch returns a single watch by ID, or nil if not found.
func (db *DB) GetWatch(id int64) (*Watch, error) {
	row := db.conn.QueryRow(watchSelect+" WHERE id = ?", id)
	w, err := scanWatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetAllWatches returns every watch, newest first.
func (db *DB) GetAllWatches() ([]Watch, error) {
	rows, err := db.conn.Query(watchSelect + " ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWatches(rows)
}

// GetActiveWatches returns all active watches. Interval-elapse filtering
// happens in the polling engine, which also tracks in-memory backoffs.
func (db *DB) GetActiveWatches() ([]Watch, error) {
	rows, err := db.conn.Query(watchSelect + " WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWatches(rows)
}

// UpdateWatchPolled records the outcome of a poll cycle for a watch.
func (db *DB) UpdateWatchPolled(id int64, resultCount int) error {
	_, err := db.conn.Exec(
		"UPDATE watches SET last_polled_at = ?, last_poll_result_count = ? WHERE id = ?",
		Now(), resultCount, id,
	)
	return err
}

// SetWatchActive toggles a watch's active flag.
func (db *DB) SetWatchActive(id int64, active bool) error {
	_, err := db.conn.Exec("UPDATE watches SET is_active = ? WHERE id = ?", boolToInt(active), id)
	return err
}

// DeleteWatch removes a watch; matches and poll requests cascade.
func (db *DB) DeleteWatch(id int64) error {
	_, err := db.conn.Exec("DELETE FROM watches WHERE id = ?", id)
	return err
}

const watchSelect = `SELECT id, name, watch_type, query_terms, court_filter, is_active,
	polling_interval_minutes, last_polled_at, last_poll_result_count, created_at
	FROM watches`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatchFields(s rowScanner) (*Watch, error) {
	var w Watch
	var active int
	var filter *string
	if err := s.Scan(&w.ID, &w.Name, &w.Type, &w.QueryTerms, &filter, &active,
		&w.PollingIntervalMinutes, &w.LastPolledAt, &w.LastPollResultCount, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.IsActive = active != 0
	if filter != nil && *filter != "" {
		if err := json.Unmarshal([]byte(*filter), &w.CourtFilter); err != nil {
			return nil, fmt.Errorf("decoding court filter for watch %d: %w", w.ID, err)
		}
	}
	return &w, nil
}

func scanWatch(row *sql.Row) (*Watch, error) {
	return scanWatchFields(row)
}

func scanWatches(rows *sql.Rows) ([]Watch, error) {
	var watches []Watch
	for rows.Next() {
		w, err := scanWatchFields(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, *w)
	}
	return watches, rows.Err()
}

func marshalCourtFilter(filter []string) (*string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encoding court filter: %w", err)
	}
	s := string(data)
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
