package repotest

import (
	"context"
	"sync"
)

type Published struct {
	Subject string
	Data    any
}

// Publisher captures events in memory.
type Publisher struct {
	mu     sync.Mutex
	Events []Published
}

func (p *Publisher) Publish(_ context.Context, subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Published{Subject: subject, Data: data})
	return nil
}

func (p *Publisher) Close() error { return nil }

func (p *Publisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Subject)
	}
	return out
}
