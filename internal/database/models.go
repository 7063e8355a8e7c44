package database

// Watch kinds.
const (
	WatchEntity = "entity"
	WatchTopic  = "topic"
	WatchAct    = "act"
)

// Poll request statuses. Progression is pending -> processing -> done/failed;
// done and failed are terminal.
const (
	RequestPending    = "pending"
	RequestProcessing = "processing"
	RequestDone       = "done"
	RequestFailed     = "failed"
)

// Judgment sources.
const (
	SourceSearch = "search"
	SourceFeed   = "feed"
)

// Watch is a standing monitor that generates periodic search queries.
type Watch struct {
	ID                     int64
	Name                   string
	Type                   string // entity, topic, act
	QueryTerms             string
	CourtFilter            []string
	IsActive               bool
	PollingIntervalMinutes int
	LastPolledAt           *string
	LastPollResultCount    int
	CreatedAt              string
}

// Judgment is the canonical, deduplicated record of one observed document.
// DocID is the stable external identifier when the document came from the
// search API; feed-sourced documents carry a case number + date instead.
type Judgment struct {
	ID           int64
	DocID        *int64
	Title        string
	Court        *string
	JudgmentDate *string
	DocSize      int
	NumCites     int
	Headline     *string
	CaseNumber   *string
	Source       string
	Metadata     map[string]any
	FirstSeenAt  string
}

// URL returns the canonical public URL for the judgment, or "" when the
// document has no stable external identifier.
func (j *Judgment) URL() string {
	if j.DocID == nil {
		return ""
	}
	return judgmentURL(*j.DocID)
}

// Match records that a specific watch's query surfaced a specific judgment.
// At most one row exists per (watch, judgment) pair.
type Match struct {
	ID             int64
	WatchID        int64
	JudgmentID     int64
	MatchedAt      string
	RelevanceScore *float64 // reserved, always nil
	Snippet        *string
	IsNotified     bool
	NotifiedAt     *string
	RetryCount     int
}

// PendingMatch is a match joined with its judgment and watch name, as
// selected for notification dispatch and digests.
type PendingMatch struct {
	Match
	WatchName string
	Judgment  Judgment
}

// PollRequest is an on-demand "poll now" queue entry.
type PollRequest struct {
	ID        string
	WatchID   int64
	Status    string
	Error     *string
	CreatedAt string
}

// NotificationLogEntry is the audit record of one delivery attempt.
type NotificationLogEntry struct {
	ID           int64
	MatchID      *int64 // nil for batch and digest messages
	Channel      string // email, slack
	Recipient    string
	Status       string // pending, sent, failed, retrying
	ErrorMessage *string
	SentAt       *string
	RetryCount   int
	CreatedAt    string
}

// APICall is one logged search API call attempt.
type APICall struct {
	Endpoint       string
	RequestURL     string
	WatchID        *int64
	HTTPStatus     *int
	ResultCount    *int
	ResponseTimeMS int64
	ErrorMessage   *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalWatches        int
	ActiveWatches       int
	TotalJudgments      int
	TotalMatches        int
	UnnotifiedMatches   int
	PendingPollRequests int
	APICallsToday       int
}
