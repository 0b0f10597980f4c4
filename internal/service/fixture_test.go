package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/internal/platform/auth"
	"github.com/mydiary/mall-server/internal/platform/session"
	"github.com/mydiary/mall-server/internal/repo/repotest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type accountFixture struct {
	clock     *clock
	users     *repotest.Users
	tokens    *repotest.ResetTokens
	sessions  *session.MemoryStore
	notifier  *repotest.Notifier
	publisher *repotest.Publisher
	auth      *authService
	passwords *passwordService
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	hasher, err := auth.NewPasswords(auth.HasherBcrypt, 4)
	require.NoError(t, err)
	issuer := auth.NewIssuer(3*time.Hour, time.Hour)

	f := &accountFixture{
		clock:     clk,
		users:     repotest.NewUsers(),
		tokens:    repotest.NewResetTokens(),
		sessions:  session.NewMemoryStore().WithClock(clk.Now),
		notifier:  &repotest.Notifier{},
		publisher: &repotest.Publisher{},
	}
	f.auth = NewAuthService(f.users, f.sessions, hasher, issuer, f.notifier, f.publisher, 30*time.Minute).(*authService)
	f.auth.now = clk.Now

	grants := auth.NewGrants("test-secret", 15*time.Minute)
	f.passwords = NewPasswordService(f.users, f.tokens, f.sessions, hasher, issuer, grants, f.notifier, f.publisher).(*passwordService)
	f.passwords.now = clk.Now
	return f
}
