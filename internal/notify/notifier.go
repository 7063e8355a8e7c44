// Package notify batches pending matches per watch and dispatches alerts
// over the configured channels. Dispatch is naturally idempotent: it always
// re-selects unnotified rows, so a failed delivery simply leaves its
// matches eligible for the next cycle.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kalro/lexwatch/internal/database"
)

// EmailSender delivers one rendered message to the configured recipients.
type EmailSender interface {
	Send(ctx context.Context, subject, htmlBody string) error
	Recipients() string
}

// SlackSender posts one message to the configured webhook.
type SlackSender interface {
	Send(ctx context.Context, msg *SlackMessage) error
}

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Watches   int
	Delivered int
	Failed    int
}

// Notifier dispatches pending match alerts and daily digests.
type Notifier struct {
	db          *database.DB
	email       EmailSender // nil when the channel is disabled
	slack       SlackSender // nil when the channel is disabled
	maxAttempts int
}

// New creates a Notifier. Pass nil for disabled channels.
func New(db *database.DB, email EmailSender, slack SlackSender, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Notifier{db: db, email: email, slack: slack, maxAttempts: maxAttempts}
}

// dispatchBatchLimit bounds how many pending matches one run picks up.
const dispatchBatchLimit = 50

// DispatchPending selects unnotified matches below the retry cap, groups
// them by watch, and sends one batched message per watch per enabled
// channel. Success on any channel marks the group's matches notified;
// total failure increments their retry counters and leaves them pending.
func (n *Notifier) DispatchPending(ctx context.Context) (*DispatchResult, error) {
	result := &DispatchResult{}
	if n.email == nil && n.slack == nil {
		return result, nil
	}

	matches, err := n.db.GetPendingMatches(n.maxAttempts, dispatchBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching pending matches: %w", err)
	}
	if len(matches) == 0 {
		return result, nil
	}

	for _, group := range groupByWatch(matches) {
		result.Watches++
		watchName := group[0].WatchName
		subject := fmt.Sprintf("[lexwatch] %s: %d new judgment(s)", watchName, len(group))
		body := renderAlertMarkdown(watchName, group)

		delivered := n.deliver(ctx, subject, body, matchIDRef(group))

		ids := make([]int64, len(group))
		for i, m := range group {
			ids[i] = m.ID
		}

		if delivered {
			result.Delivered++
			if err := n.db.MarkMatchesNotified(ids); err != nil {
				log.Printf("failed to mark matches notified for %s: %v", watchName, err)
			}
		} else {
			result.Failed++
			if err := n.db.IncrementMatchRetries(ids); err != nil {
				log.Printf("failed to increment retry count for %s: %v", watchName, err)
			}
			log.Printf("notification failed for %s (%d matches), will retry", watchName, len(group))
		}
	}

	return result, nil
}

// deliver attempts every enabled channel and logs one audit entry per
// attempt. Returns true when at least one channel succeeded.
func (n *Notifier) deliver(ctx context.Context, subject, markdownBody string, matchID *int64) bool {
	delivered := false

	if n.email != nil {
		html, err := renderHTML(markdownBody)
		if err == nil {
			err = n.email.Send(ctx, subject, html)
		}
		n.logAttempt(matchID, database.ChannelEmail, n.email.Recipients(), err)
		if err == nil {
			delivered = true
		} else {
			log.Printf("email delivery failed: %v", err)
		}
	}

	if n.slack != nil {
		err := n.slack.Send(ctx, slackMessage(subject, markdownBody))
		n.logAttempt(matchID, database.ChannelSlack, "webhook", err)
		if err == nil {
			delivered = true
		} else {
			log.Printf("slack delivery failed: %v", err)
		}
	}

	return delivered
}

// SendDailyDigest summarizes all matches from the past 24 hours across all
// watches in one combined message, independent of the per-match notified
// flag. The digest never flips that flag.
func (n *Notifier) SendDailyDigest(ctx context.Context) error {
	if n.email == nil && n.slack == nil {
		return nil
	}

	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	matches, err := n.db.GetMatchesSince(since)
	if err != nil {
		return fmt.Errorf("fetching digest matches: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}

	groups := groupByWatch(matches)
	subject := fmt.Sprintf("[lexwatch] Daily digest: %d match(es) across %d watch(es)",
		len(matches), len(groups))
	body := renderDigestMarkdown(groups)

	n.deliver(ctx, subject, body, nil)
	return nil
}

// SendAdminAlert delivers a critical operator alert. Best-effort: failures
// are logged, never propagated. Satisfies the polling engine's Alerter.
func (n *Notifier) SendAdminAlert(ctx context.Context, subject, message string) {
	full := "[lexwatch CRITICAL] " + subject
	body := "CRITICAL ALERT\n\n" + message

	if n.email != nil {
		html, err := renderHTML(body)
		if err == nil {
			err = n.email.Send(ctx, full, html)
		}
		if err != nil {
			log.Printf("failed to send admin alert email: %v", err)
		}
	}
	if n.slack != nil {
		if err := n.slack.Send(ctx, slackMessage(full, body)); err != nil {
			log.Printf("failed to send admin alert to slack: %v", err)
		}
	}
}

// logAttempt appends one delivery attempt to the notification audit log.
func (n *Notifier) logAttempt(matchID *int64, channel, recipient string, sendErr error) {
	entry := &database.NotificationLogEntry{
		MatchID:   matchID,
		Channel:   channel,
		Recipient: recipient,
	}
	if sendErr == nil {
		entry.Status = database.DeliverySent
		now := database.Now()
		entry.SentAt = &now
	} else {
		entry.Status = database.DeliveryFailed
		msg := sendErr.Error()
		entry.ErrorMessage = &msg
	}
	if err := n.db.InsertNotificationLog(entry); err != nil {
		log.Printf("failed to write notification log: %v", err)
	}
}

// groupByWatch partitions matches by watch, preserving selection order.
func groupByWatch(matches []database.PendingMatch) [][]database.PendingMatch {
	index := make(map[int64]int)
	var groups [][]database.PendingMatch
	for _, m := range matches {
		i, ok := index[m.WatchID]
		if !ok {
			i = len(groups)
			index[m.WatchID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

// matchIDRef returns a match reference for the audit log: set for
// single-match batches, nil when the message spans several matches.
func matchIDRef(group []database.PendingMatch) *int64 {
	if len(group) == 1 {
		id := group[0].ID
		return &id
	}
	return nil
}

func joinRecipients(recipients []string) string {
	return strings.Join(recipients, ", ")
}
