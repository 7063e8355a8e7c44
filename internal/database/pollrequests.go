package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreatePollRequest enqueues an on-demand poll for a watch and returns the
// request ID. The target watch must exist but need not be active.
func (db *DB) CreatePollRequest(watchID int64) (string, error) {
	w, err := db.GetWatch(watchID)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", fmt.Errorf("watch %d not found", watchID)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO poll_requests (id, watch_id, status, created_at) VALUES (?, ?, ?, ?)",
		id, watchID, RequestPending, Now(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetPendingPollRequests returns requests awaiting processing, oldest first.
func (db *DB) GetPendingPollRequests() ([]PollRequest, error) {
	rows, err := db.conn.Query(
		`SELECT id, watch_id, status, error, created_at FROM poll_requests
		WHERE status = ? ORDER BY created_at ASC`,
		RequestPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []PollRequest
	for rows.Next() {
		var r PollRequest
		if err := rows.Scan(&r.ID, &r.WatchID, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ClaimPollRequest atomically moves a pending request to processing.
// Returns false if the request was already claimed or is terminal.
func (db *DB) ClaimPollRequest(id string) (bool, error) {
	result, err := db.conn.Exec(
		"UPDATE poll_requests SET status = ? WHERE id = ? AND status = ?",
		RequestProcessing, id, RequestPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// FinishPollRequest moves a processing request to its terminal state
// (done or failed). Terminal requests are never revived.
func (db *DB) FinishPollRequest(id, status string, errMsg *string) error {
	if status != RequestDone && status != RequestFailed {
		return fmt.Errorf("non-terminal poll request status: %q", status)
	}
	_, err := db.conn.Exec(
		"UPDATE poll_requests SET status = ?, error = ? WHERE id = ? AND status = ?",
		status, errMsg, id, RequestProcessing,
	)
	return err
}

// GetPollRequest returns one request by ID, or nil if not found.
func (db *DB) GetPollRequest(id string) (*PollRequest, error) {
	var r PollRequest
	err := db.conn.QueryRow(
		"SELECT id, watch_id, status, error, created_at FROM poll_requests WHERE id = ?", id,
	).Scan(&r.ID, &r.WatchID, &r.Status, &r.Error, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
