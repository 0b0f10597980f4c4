package mailer

import (
	"context"

	"github.com/mydiary/mall-server/pkg/config"
)

// Service delivers one message and returns the provider's message id, if any.
type Service interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
}

// New picks the transport: dev logging, MailerSend API, or plain SMTP.
func New(cfg config.EmailConfig) Service {
	switch {
	case cfg.DevMode:
		return NewDevMailer()
	case cfg.MailerSendKey != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
