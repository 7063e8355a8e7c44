package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS watches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    watch_type TEXT NOT NULL CHECK(watch_type IN ('entity', 'topic', 'act')),
    query_terms TEXT NOT NULL,
    court_filter TEXT,
    is_active INTEGER DEFAULT 1,
    polling_interval_minutes INTEGER DEFAULT 120 CHECK(polling_interval_minutes >= 120),
    last_polled_at TEXT,
    last_poll_result_count INTEGER DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS judgments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id INTEGER UNIQUE,
    title TEXT NOT NULL,
    court TEXT,
    judgment_date TEXT,
    doc_size INTEGER DEFAULT 0,
    num_cites INTEGER DEFAULT 0,
    headline TEXT,
    case_number TEXT,
    source TEXT NOT NULL DEFAULT 'search',
    metadata TEXT,
    first_seen_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS watch_matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    watch_id INTEGER NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
    judgment_id INTEGER NOT NULL REFERENCES judgments(id) ON DELETE CASCADE,
    matched_at TEXT NOT NULL,
    relevance_score REAL,
    snippet TEXT,
    is_notified INTEGER DEFAULT 0,
    notified_at TEXT,
    retry_count INTEGER DEFAULT 0,
    UNIQUE(watch_id, judgment_id)
);

CREATE TABLE IF NOT EXISTS poll_requests (
    id TEXT PRIMARY KEY,
    watch_id INTEGER NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'processing', 'done', 'failed')),
    error TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    match_id INTEGER REFERENCES watch_matches(id) ON DELETE SET NULL,
    channel TEXT NOT NULL CHECK(channel IN ('email', 'slack')),
    recipient TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'sent', 'failed', 'retrying')),
    error_message TEXT,
    sent_at TEXT,
    retry_count INTEGER DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS api_call_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint TEXT NOT NULL,
    request_url TEXT NOT NULL,
    watch_id INTEGER,
    http_status INTEGER,
    result_count INTEGER,
    response_time_ms INTEGER DEFAULT 0,
    error_message TEXT,
    called_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS app_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Secondary dedup key for documents with no stable external identifier.
CREATE UNIQUE INDEX IF NOT EXISTS idx_judgments_case_ref
    ON judgments(case_number, judgment_date)
    WHERE case_number IS NOT NULL AND judgment_date IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_matches_watch ON watch_matches(watch_id);
CREATE INDEX IF NOT EXISTS idx_matches_unnotified ON watch_matches(is_notified, retry_count);
CREATE INDEX IF NOT EXISTS idx_matches_matched_at ON watch_matches(matched_at);
CREATE INDEX IF NOT EXISTS idx_poll_requests_status ON poll_requests(status);
CREATE INDEX IF NOT EXISTS idx_api_call_log_called_at ON api_call_log(called_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
