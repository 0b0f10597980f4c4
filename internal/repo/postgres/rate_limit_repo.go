package postgres

import (
	"context"
	"time"
)

// RateLimitRepoImpl counts requests per key in fixed windows.
type RateLimitRepoImpl struct{ db DB }

func NewRateLimitRepo(db DB) *RateLimitRepoImpl {
	return &RateLimitRepoImpl{db: db}
}

// Incr bumps the counter for key, restarting it when the window has passed.
func (r *RateLimitRepoImpl) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	windowStart := now.Add(-window)

	const q = `
INSERT INTO rate_limits (key, count, window_start, expires_at)
VALUES ($1, 1, $2, $3)
ON CONFLICT (key) DO UPDATE SET
	count = CASE
		WHEN rate_limits.window_start < $4 THEN 1
		ELSE rate_limits.count + 1
	END,
	window_start = CASE
		WHEN rate_limits.window_start < $4 THEN $2
		ELSE rate_limits.window_start
	END,
	expires_at = $3
RETURNING count`

	var count int64
	err := r.db.QueryRow(ctx, q, key, now, now.Add(window), windowStart).Scan(&count)
	return count, err
}

func (r *RateLimitRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM rate_limits WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
