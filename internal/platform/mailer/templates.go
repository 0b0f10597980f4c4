package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"
)

// ExpiryLayout renders expirations as "2006-01-02 15:04:05" in the mail timezone.
const ExpiryLayout = "2006-01-02 15:04:05"

var (
	verificationHTML = template.Must(template.New("verify").Parse(
		`<p>{{.Name}}님, 이메일 인증을 위해 아래 링크를 클릭해주세요.<br>` +
			`해당 링크는 <strong>{{.Expires}}</strong>까지 유효합니다.</p>` +
			`<p><a href="{{.Link}}" style="font-size:200%; text-decoration:none;">인증하기</a></p>`))

	resetHTML = template.Must(template.New("reset").Parse(
		`<p>{{.Name}}님, 비밀번호 재설정을 요청하셨습니다.<br>` +
			`아래 링크는 <strong>{{.Expires}}</strong>까지 유효합니다.</p>` +
			`<p><a href="{{.Link}}">비밀번호 재설정</a></p>` +
			`<p>요청하지 않으셨다면 이 메일을 무시하세요.</p>`))
)

type linkMail struct {
	Name    string
	Link    string
	Expires string
}

// Notifier renders account mails and hands them to a Service.
type Notifier struct {
	svc         Service
	frontendURL string
	loc         *time.Location
}

func NewNotifier(svc Service, frontendURL string, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{svc: svc, frontendURL: frontendURL, loc: loc}
}

func (n *Notifier) SendVerification(ctx context.Context, toEmail, name, token string, expires time.Time) error {
	data := linkMail{
		Name:    name,
		Link:    n.link("/verify-email", token),
		Expires: expires.In(n.loc).Format(ExpiryLayout),
	}
	text := fmt.Sprintf("이메일 인증 링크: %s\n%s까지 유효합니다.", data.Link, data.Expires)
	return n.send(ctx, toEmail, name, "이메일 인증", text, verificationHTML, data)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, toEmail, name, token string, expires time.Time) error {
	data := linkMail{
		Name:    name,
		Link:    n.link("/reset-password", token),
		Expires: expires.In(n.loc).Format(ExpiryLayout),
	}
	text := fmt.Sprintf("비밀번호 재설정 링크: %s\n%s까지 유효합니다.", data.Link, data.Expires)
	return n.send(ctx, toEmail, name, "비밀번호 재설정 요청", text, resetHTML, data)
}

func (n *Notifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (n *Notifier) send(ctx context.Context, to, name, subject, text string, tpl *template.Template, data linkMail) error {
	var html bytes.Buffer
	if err := tpl.Execute(&html, data); err != nil {
		return fmt.Errorf("render %s: %w", tpl.Name(), err)
	}
	if _, err := n.svc.Send(ctx, to, name, subject, text, html.String()); err != nil {
		return fmt.Errorf("send %s mail: %w", tpl.Name(), err)
	}
	return nil
}
