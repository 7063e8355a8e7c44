package notify

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/kalro/lexwatch/internal/database"
)

var md = goldmark.New()

// renderHTML converts a markdown body to the HTML email payload.
func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// renderAlertMarkdown builds the batched per-watch alert body: one message
// per watch listing every pending match, never one message per judgment.
func renderAlertMarkdown(watchName string, group []database.PendingMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Watch:** %s\n\n", watchName)
	fmt.Fprintf(&b, "%d new judgment(s) matched.\n\n", len(group))
	writeMatchList(&b, group)
	b.WriteString("\n---\n\nlexwatch · judgment monitor\n")
	return b.String()
}

// renderDigestMarkdown builds the combined daily digest across all watches.
func renderDigestMarkdown(groups [][]database.PendingMatch) string {
	var b strings.Builder
	b.WriteString("**Daily digest** — matches from the past 24 hours.\n")
	for _, group := range groups {
		fmt.Fprintf(&b, "\n### %s (%d)\n\n", group[0].WatchName, len(group))
		writeMatchList(&b, group)
	}
	b.WriteString("\n---\n\nlexwatch · judgment monitor\n")
	return b.String()
}

func writeMatchList(b *strings.Builder, group []database.PendingMatch) {
	for i, m := range group {
		j := m.Judgment
		fmt.Fprintf(b, "%d. **%s**\n", i+1, j.Title)
		if j.Court != nil {
			fmt.Fprintf(b, "   Court: %s\n", *j.Court)
		}
		if j.JudgmentDate != nil {
			fmt.Fprintf(b, "   Date: %s\n", *j.JudgmentDate)
		}
		if url := j.URL(); url != "" {
			fmt.Fprintf(b, "   %s\n", url)
		} else if j.CaseNumber != nil {
			fmt.Fprintf(b, "   Case: %s\n", *j.CaseNumber)
		}
	}
}

// slackMessage wraps subject and body into a Block Kit payload.
func slackMessage(subject, markdownBody string) *SlackMessage {
	return &SlackMessage{
		Text: subject,
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackBlockText{Type: "plain_text", Text: subject},
			},
			{
				Type: "section",
				Text: &SlackBlockText{Type: "mrkdwn", Text: markdownBody},
			},
		},
	}
}
