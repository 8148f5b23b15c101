// Package mailer delivers a single message. Queueing and retries live in the
// email module's outbox.
package mailer

import (
	"context"

	"shopdesk.io/app/internal/config"
)

type Service interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string // optional display name
	From     string

	To  []string
	Cc  []string
	Bcc []string

	Subject string

	TextBody string
	HTMLBody string

	Headers map[string]string
}

func (e Email) AllRecipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	out = append(out, e.Bcc...)
	return out
}

// New picks the transport named by email.transport. SMTP without a host
// falls back to the Mock.
func New(smtpCfg config.SMTPConfig, emailCfg config.EmailConfig) Service {
	switch emailCfg.Transport {
	case "mailtrap":
		return NewMailtrap(emailCfg.Mailtrap)
	case "mock":
		return &Mock{}
	}
	if smtpCfg.Host == "" {
		return &Mock{}
	}
	return NewSMTPMailer(smtpCfg)
}
