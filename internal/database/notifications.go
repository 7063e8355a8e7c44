package database

// Notification channels and statuses.
const (
	ChannelEmail = "email"
	ChannelSlack = "slack"

	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryRetrying = "retrying"
)

// InsertNotificationLog appends one delivery-attempt record to the audit
// log. The log is append-only; rows are never updated or deleted.
func (db *DB) InsertNotificationLog(e *NotificationLogEntry) error {
	_, err := db.conn.Exec(
		`INSERT INTO notification_log
		(match_id, channel, recipient, status, error_message, sent_at, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MatchID, e.Channel, e.Recipient, e.Status, e.ErrorMessage, e.SentAt, e.RetryCount, Now(),
	)
	return err
}

// GetNotificationLog returns the most recent delivery attempts.
func (db *DB) GetNotificationLog(limit int) ([]NotificationLogEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, match_id, channel, recipient, status, error_message, sent_at, retry_count, created_at
		FROM notification_log ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []NotificationLogEntry
	for rows.Next() {
		var e NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.MatchID, &e.Channel, &e.Recipient, &e.Status,
			&e.ErrorMessage, &e.SentAt, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
