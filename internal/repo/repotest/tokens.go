package repotest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/repo/postgres"
)

type ResetTokens struct {
	mu     sync.Mutex
	tokens map[string]*domain.PasswordResetToken
}

func NewResetTokens() *ResetTokens {
	return &ResetTokens{tokens: make(map[string]*domain.PasswordResetToken)}
}

func (r *ResetTokens) Create(_ context.Context, t *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[t.Token]; ok {
		return fmt.Errorf("reset token: %w", domain.ErrConflict)
	}
	c := *t
	r.tokens[t.Token] = &c
	return nil
}

func (r *ResetTokens) Find(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, fmt.Errorf("reset token: %w", domain.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// Latest returns the most recently expiring token of userID, or nil.
func (r *ResetTokens) Latest(userID int64) *domain.PasswordResetToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PasswordResetToken
	for _, t := range r.tokens {
		if t.UserID == userID && (latest == nil || t.Expiration.After(latest.Expiration)) {
			latest = t
		}
	}
	if latest == nil {
		return nil
	}
	c := *latest
	return &c
}

func (r *ResetTokens) Consume(_ context.Context, token string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.ConsumedAt != nil || !t.Expiration.After(now) {
		return false, nil
	}
	t.ConsumedAt = &now
	return true, nil
}

func (r *ResetTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.tokens {
		if t.Expiration.Before(now) || t.ConsumedAt != nil {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

var _ postgres.ResetTokenRepo = (*ResetTokens)(nil)
