package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalro/lexwatch/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMatch(t *testing.T, db *database.DB, watchName string, doc int64) int64 {
	t.Helper()
	wid, err := db.InsertWatch(watchName, database.WatchEntity, watchName, nil, 240)
	if err != nil {
		t.Fatalf("insert watch: %v", err)
	}
	return seedMatchForWatch(t, db, wid, doc)
}

func seedMatchForWatch(t *testing.T, db *database.DB, watchID, doc int64) int64 {
	t.Helper()
	jid, _, err := db.InsertJudgment(&database.Judgment{DocID: &doc, Title: "Case", Source: database.SourceSearch})
	if err != nil {
		t.Fatalf("insert judgment: %v", err)
	}
	mid, _, err := db.InsertMatch(watchID, jid, nil)
	if err != nil {
		t.Fatalf("insert match: %v", err)
	}
	return mid
}

// fakeEmail records sends and optionally fails.
type fakeEmail struct {
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeEmail) Send(ctx context.Context, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, htmlBody)
	return nil
}

func (f *fakeEmail) Recipients() string { return "ops@example.com" }

// fakeSlack records messages and optionally fails.
type fakeSlack struct {
	messages []*SlackMessage
	err      error
}

func (f *fakeSlack) Send(ctx context.Context, msg *SlackMessage) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func TestDispatchPendingBatchesPerWatch(t *testing.T) {
	db := openTestDB(t)
	wid, _ := db.InsertWatch("acme", database.WatchEntity, "Acme", nil, 240)
	seedMatchForWatch(t, db, wid, 1)
	seedMatchForWatch(t, db, wid, 2)
	seedMatch(t, db, "globex", 3)

	email := &fakeEmail{}
	n := New(db, email, nil, 3)

	result, err := n.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Watches != 2 || result.Delivered != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	// One message per watch, not per judgment.
	if len(email.subjects) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(email.subjects))
	}
	for _, s := range email.subjects {
		if s == "[lexwatch] acme: 2 new judgment(s)" {
			return
		}
	}
	t.Errorf("expected batched acme subject, got %v", email.subjects)
}

func TestDispatchPendingMarksNotified(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db, "acme", 1)

	n := New(db, &fakeEmail{}, nil, 3)
	if _, err := n.DispatchPending(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, _ := db.GetPendingMatches(3, 50)
	if len(pending) != 0 {
		t.Errorf("expected no pending matches after dispatch, got %d", len(pending))
	}

	// A second dispatch has nothing to send.
	email := &fakeEmail{}
	n = New(db, email, nil, 3)
	result, _ := n.DispatchPending(context.Background())
	if result.Watches != 0 || len(email.subjects) != 0 {
		t.Error("expected dispatch to be idempotent after success")
	}
}

func TestDispatchPendingAnyChannelSuccess(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db, "acme", 1)

	email := &fakeEmail{err: errors.New("smtp down")}
	slack := &fakeSlack{}
	n := New(db, email, slack, 3)

	result, err := n.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Delivered != 1 || result.Failed != 0 {
		t.Errorf("expected slack success to count as delivered: %+v", result)
	}
	if len(slack.messages) != 1 {
		t.Fatalf("expected 1 slack message, got %d", len(slack.messages))
	}

	pending, _ := db.GetPendingMatches(3, 50)
	if len(pending) != 0 {
		t.Error("expected match marked notified after partial success")
	}
}

func TestDispatchPendingFailureIncrementsRetries(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db, "acme", 1)

	n := New(db, &fakeEmail{err: errors.New("smtp down")}, nil, 3)

	result, err := n.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed batch, got %+v", result)
	}

	pending, _ := db.GetPendingMatches(3, 50)
	if len(pending) != 1 {
		t.Fatalf("expected match still pending, got %d", len(pending))
	}
	if pending[0].RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", pending[0].RetryCount)
	}
}

func TestDispatchPendingRespectsRetryCap(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db, "acme", 1)

	email := &fakeEmail{err: errors.New("smtp down")}
	n := New(db, email, nil, 3)

	for i := 0; i < 3; i++ {
		if _, err := n.DispatchPending(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Attempts exhausted: the match drops out of dispatch.
	result, err := n.DispatchPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Watches != 0 {
		t.Errorf("expected exhausted match excluded, got %+v", result)
	}
}

func TestDispatchWritesAuditLog(t *testing.T) {
	db := openTestDB(t)
	seedMatch(t, db, "acme", 1)

	n := New(db, &fakeEmail{}, &fakeSlack{err: errors.New("webhook 500")}, 3)
	if _, err := n.DispatchPending(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := db.GetNotificationLog(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries (one per channel), got %d", len(entries))
	}

	byChannel := map[string]database.NotificationLogEntry{}
	for _, e := range entries {
		byChannel[e.Channel] = e
	}
	if byChannel[database.ChannelEmail].Status != database.DeliverySent {
		t.Errorf("expected email sent, got %q", byChannel[database.ChannelEmail].Status)
	}
	slackEntry := byChannel[database.ChannelSlack]
	if slackEntry.Status != database.DeliveryFailed {
		t.Errorf("expected slack failed, got %q", slackEntry.Status)
	}
	if slackEntry.ErrorMessage == nil || !strings.Contains(*slackEntry.ErrorMessage, "webhook 500") {
		t.Error("expected failure message recorded")
	}
}

func TestSendDailyDigestIncludesNotified(t *testing.T) {
	db := openTestDB(t)
	mid := seedMatch(t, db, "acme", 1)
	db.MarkMatchesNotified([]int64{mid})
	seedMatch(t, db, "globex", 2)

	email := &fakeEmail{}
	n := New(db, email, nil, 3)

	if err := n.SendDailyDigest(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.subjects) != 1 {
		t.Fatalf("expected 1 digest message, got %d", len(email.subjects))
	}
	if !strings.Contains(email.subjects[0], "Daily digest: 2 match(es)") {
		t.Errorf("unexpected digest subject: %q", email.subjects[0])
	}
	if !strings.Contains(email.bodies[0], "acme") || !strings.Contains(email.bodies[0], "globex") {
		t.Error("expected digest to span all watches")
	}

	// The digest never flips notification state.
	pending, _ := db.GetPendingMatches(3, 50)
	if len(pending) != 1 {
		t.Errorf("expected unnotified match untouched by digest, got %d pending", len(pending))
	}
}

func TestSendDailyDigestEmptyIsSilent(t *testing.T) {
	db := openTestDB(t)
	email := &fakeEmail{}
	n := New(db, email, nil, 3)

	if err := n.SendDailyDigest(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.subjects) != 0 {
		t.Error("expected no digest without matches")
	}
}

func TestSendAdminAlert(t *testing.T) {
	db := openTestDB(t)
	email := &fakeEmail{}
	slack := &fakeSlack{}
	n := New(db, email, slack, 3)

	n.SendAdminAlert(context.Background(), "Search API Authentication Failure (403)", "Token rejected.")

	if len(email.subjects) != 1 || !strings.HasPrefix(email.subjects[0], "[lexwatch CRITICAL]") {
		t.Errorf("expected critical email alert, got %v", email.subjects)
	}
	if len(slack.messages) != 1 {
		t.Errorf("expected slack alert, got %d", len(slack.messages))
	}
}

func TestRenderHTMLFromMarkdown(t *testing.T) {
	html, err := renderHTML("**Watch:** acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<strong>Watch:</strong>") {
		t.Errorf("expected rendered markdown, got %q", html)
	}
}

func TestGroupByWatchPreservesOrder(t *testing.T) {
	matches := []database.PendingMatch{
		{Match: database.Match{ID: 1, WatchID: 10}, WatchName: "a"},
		{Match: database.Match{ID: 2, WatchID: 20}, WatchName: "b"},
		{Match: database.Match{ID: 3, WatchID: 10}, WatchName: "a"},
	}
	groups := groupByWatch(matches)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].ID != 1 || groups[0][1].ID != 3 {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
}
