// Package sweeper removes expired accounts, sessions and bookkeeping rows on a timer.
package sweeper

import (
	"context"
	"time"

	"github.com/mydiary/mall-server/internal/platform/session"
	"github.com/mydiary/mall-server/internal/repo/postgres"
	"github.com/mydiary/mall-server/pkg/config"
	"github.com/mydiary/mall-server/pkg/events"
	"github.com/mydiary/mall-server/pkg/logger"
)

// Cleaner drops rows whose expiry has passed.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	users     postgres.UserRepo
	tokens    postgres.ResetTokenRepo
	sessions  session.Store
	publisher events.Publisher
	cleaners  map[string]Cleaner
	cfg       config.SweeperConfig
	now       func() time.Time
}

func New(
	users postgres.UserRepo,
	tokens postgres.ResetTokenRepo,
	sessions session.Store,
	publisher events.Publisher,
	cfg config.SweeperConfig,
	cleaners map[string]Cleaner,
) *Sweeper {
	return &Sweeper{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		publisher: publisher,
		cleaners:  cleaners,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run ticks every task on its own interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	unverified := time.NewTicker(s.cfg.UnverifiedEvery)
	defer unverified.Stop()
	idle := time.NewTicker(s.cfg.IdleEvery)
	defer idle.Stop()
	housekeeping := time.NewTicker(s.cfg.HousekeepingEvery)
	defer housekeeping.Stop()

	logger.Info("Sweeper started",
		"unverified_every", s.cfg.UnverifiedEvery,
		"idle_every", s.cfg.IdleEvery,
		"housekeeping_every", s.cfg.HousekeepingEvery,
	)
	for {
		select {
		case <-unverified.C:
			s.SweepUnverified(ctx)
		case <-idle.C:
			s.SweepIdle(ctx)
		case <-housekeeping.C:
			s.Housekeeping(ctx)
		case <-ctx.Done():
			logger.Info("Sweeper stopped")
			return nil
		}
	}
}

// SweepUnverified deletes accounts whose verification window has closed.
func (s *Sweeper) SweepUnverified(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := s.now()
	n, err := s.users.DeleteExpiredUnverified(ctx, now)
	if err != nil {
		logger.Error("Unverified account sweep failed", "error", err, "user_id", logger.SystemActor)
		return 0
	}
	if n > 0 {
		logger.Info("Deleted unverified accounts", "count", n, "user_id", logger.SystemActor)
		events.Emit(ctx, s.publisher, events.AccountsExpired, events.SweepEvent{Count: n, OccurredAt: now})
	}
	return n
}

// SweepIdle logs out users inactive for longer than IdleTimeout and drops their sessions.
func (s *Sweeper) SweepIdle(ctx context.Context) []int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := s.now()
	ids, err := s.users.LogoutIdle(ctx, now.Add(-s.cfg.IdleTimeout))
	if err != nil {
		logger.Error("Idle session sweep failed", "error", err, "user_id", logger.SystemActor)
		return nil
	}
	for _, id := range ids {
		if err := s.sessions.DestroyUser(ctx, id); err != nil {
			logger.Warn("Failed to destroy sessions of idle user", "error", err, "user_id", id)
		}
	}
	if len(ids) > 0 {
		logger.Info("Logged out idle users", "count", len(ids), "user_id", logger.SystemActor)
		events.Emit(ctx, s.publisher, events.SessionsExpired,
			events.SweepEvent{Count: int64(len(ids)), UserIDs: ids, OccurredAt: now})
	}
	return ids
}

// Housekeeping drops expired reset tokens and every registered Cleaner's rows.
func (s *Sweeper) Housekeeping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if n, err := s.tokens.DeleteExpired(ctx, s.now()); err != nil {
		logger.Error("Reset token cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("Deleted expired reset tokens", "count", n)
	}

	for name, c := range s.cleaners {
		n, err := c.CleanupExpired(ctx)
		if err != nil {
			logger.Error("Cleanup failed", "table", name, "error", err)
			continue
		}
		if n > 0 {
			logger.Info("Cleaned up expired rows", "table", name, "count", n)
		}
	}
}
