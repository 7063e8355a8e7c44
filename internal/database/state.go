package database

import "database/sql"

// App state keys. The pause flag lives in the store (not process memory) so
// it survives restarts and is visible to every timer and process.
const (
	statePaused       = "polling_paused"
	statePausedReason = "paused_reason"
	statePausedAt     = "paused_at"
)

// GetState returns the value for a state key, or "" if unset.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetState upserts a state key.
func (db *DB) SetState(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, Now(),
	)
	return err
}

// IsPollingPaused reports whether the global polling mode is Paused, along
// with the recorded reason.
func (db *DB) IsPollingPaused() (bool, string, error) {
	paused, err := db.GetState(statePaused)
	if err != nil {
		return false, "", err
	}
	if paused != "1" {
		return false, "", nil
	}
	reason, err := db.GetState(statePausedReason)
	if err != nil {
		return true, "", err
	}
	return true, reason, nil
}

// PausePolling flips the global polling mode to Paused. Only an explicit
// operator resume transitions back.
func (db *DB) PausePolling(reason string) error {
	if err := db.SetState(statePaused, "1"); err != nil {
		return err
	}
	if err := db.SetState(statePausedReason, reason); err != nil {
		return err
	}
	return db.SetState(statePausedAt, Now())
}

// ResumePolling flips the global polling mode back to Running.
func (db *DB) ResumePolling() error {
	return db.SetState(statePaused, "0")
}
