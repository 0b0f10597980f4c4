package mailer

import (
	"context"

	"github.com/mydiary/mall-server/pkg/logger"
)

// DevMailer writes messages to the log instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	logger.InfoContext(ctx, "[DEV MAIL] message not sent",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return "", nil
}
