package repotest

import (
	"context"
	"sync"
	"time"
)

type Mail struct {
	Kind    string
	To      string
	Name    string
	Token   string
	Expires time.Time
}

// Notifier records account mails instead of sending them.
type Notifier struct {
	mu   sync.Mutex
	Sent []Mail
	Err  error
}

func (n *Notifier) record(m Mail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, m)
	return nil
}

func (n *Notifier) SendVerification(_ context.Context, to, name, token string, expires time.Time) error {
	return n.record(Mail{Kind: "verification", To: to, Name: name, Token: token, Expires: expires})
}

func (n *Notifier) SendPasswordReset(_ context.Context, to, name, token string, expires time.Time) error {
	return n.record(Mail{Kind: "reset", To: to, Name: name, Token: token, Expires: expires})
}

// Last returns the newest mail, or the zero Mail.
func (n *Notifier) Last() Mail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Sent) == 0 {
		return Mail{}
	}
	return n.Sent[len(n.Sent)-1]
}
