package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/pkg/config"
)

type captured struct {
	to, name, subject, text, html string
}

type recordingService struct {
	sent []captured
	err  error
}

func (r *recordingService) Send(_ context.Context, to, name, subject, text, html string) (string, error) {
	r.sent = append(r.sent, captured{to, name, subject, text, html})
	return "msg-1", r.err
}

func TestNotifier_VerificationMailCarriesLinkAndLocalExpiry(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	svc := &recordingService{}
	n := NewNotifier(svc, "http://localhost:8080", seoul)

	expires := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, n.SendVerification(context.Background(), "a@x.com", "Ann", "deadbeef", expires))

	require.Len(t, svc.sent, 1)
	m := svc.sent[0]
	assert.Equal(t, "a@x.com", m.to)
	assert.Contains(t, m.html, "http://localhost:8080/verify-email?token=deadbeef")
	assert.Contains(t, m.html, "2024-05-01 12:00:00")
	assert.Contains(t, m.text, "2024-05-01 12:00:00")
}

func TestNotifier_EscapesName(t *testing.T) {
	svc := &recordingService{}
	n := NewNotifier(svc, "http://localhost:8080", nil)

	require.NoError(t, n.SendPasswordReset(context.Background(), "a@x.com", "<b>Ann</b>", "tok", time.Now()))
	assert.NotContains(t, svc.sent[0].html, "<b>Ann</b>")
	assert.Contains(t, svc.sent[0].html, "/reset-password?token=tok")
}

func TestNotifier_PropagatesSendError(t *testing.T) {
	svc := &recordingService{err: errors.New("smtp down")}
	n := NewNotifier(svc, "http://localhost:8080", nil)

	err := n.SendVerification(context.Background(), "a@x.com", "Ann", "tok", time.Now())
	assert.Error(t, err)
}

func TestNew_PicksTransport(t *testing.T) {
	assert.IsType(t, &DevMailer{}, New(config.EmailConfig{DevMode: true}))
	assert.IsType(t, &MailerSend{}, New(config.EmailConfig{MailerSendKey: "key", SMTPFrom: "noreply@x.com"}))
	assert.IsType(t, &SMTPMailer{}, New(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 1025}))
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@x.com", "a@x.com", "이메일 인증", "plain", "<p>html</p>"))
	assert.True(t, strings.HasPrefix(msg, "From: noreply@x.com\r\n"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, msg, "<p>html</p>")
}
