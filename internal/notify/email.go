package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender sends HTML email through a plain SMTP submission endpoint
// (STARTTLS negotiated by the server when offered).
type SMTPSender struct {
	host       string
	port       int
	username   string
	password   string
	from       string
	recipients []string
}

// NewSMTPSender creates an email sender.
func NewSMTPSender(host string, port int, username, password, from string, recipients []string) *SMTPSender {
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		recipients: recipients,
	}
}

// Recipients returns the configured recipient list for audit logging.
func (s *SMTPSender) Recipients() string {
	return joinRecipients(s.recipients)
}

// Send delivers one HTML message to all configured recipients.
func (s *SMTPSender) Send(ctx context.Context, subject, htmlBody string) error {
	if s.host == "" || s.from == "" || len(s.recipients) == 0 {
		return fmt.Errorf("email sender not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := smtp.SendMail(addr, auth, s.from, s.recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
