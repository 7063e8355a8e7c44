package database

// InsertAPICall appends one search API call attempt to the usage log.
// This is the operator's only cost-visibility mechanism, so the client
// records every attempt, success or failure.
func (db *DB) InsertAPICall(c *APICall) error {
	_, err := db.conn.Exec(
		`INSERT INTO api_call_log
		(endpoint, request_url, watch_id, http_status, result_count, response_time_ms, error_message, called_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Endpoint, c.RequestURL, c.WatchID, c.HTTPStatus, c.ResultCount,
		c.ResponseTimeMS, c.ErrorMessage, Now(),
	)
	return err
}

// CountAPICallsSince returns the number of logged call attempts at or after
// the given timestamp.
func (db *DB) CountAPICallsSince(since string) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM api_call_log WHERE called_at >= ?", since,
	).Scan(&count)
	return count, err
}
