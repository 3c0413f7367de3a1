// Package notify renders order emails and delivers them through Resend, SMTP
// or nowhere, either inline or through an asynq queue.
package notify

import (
	"context"
	"time"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" }

type SenderConfig struct {
	ResendAPIKey string
	FromName     string
	FromEmail    string
	SMTP         SMTPConfig
}

// NewSender prefers Resend, then SMTP, then NoopSender.
func NewSender(cfg SenderConfig) Sender {
	switch {
	case cfg.ResendAPIKey != "":
		return NewResendSender(cfg.ResendAPIKey, cfg.FromName, cfg.FromEmail)
	case cfg.SMTP.Enabled():
		return NewSMTPSender(cfg.SMTP, cfg.FromName, cfg.FromEmail)
	default:
		return NoopSender{}
	}
}

const defaultSendTimeout = 15 * time.Second
