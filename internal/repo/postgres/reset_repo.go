package postgres

import (
	"context"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
)

type ResetTokenRepo interface {
	Create(ctx context.Context, t *domain.PasswordResetToken) error
	Find(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	// Consume marks an unexpired, unused token as used and reports whether it did.
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokenRepoImpl struct{ db DB }

func NewResetTokenRepo(db DB) *ResetTokenRepoImpl {
	return &ResetTokenRepoImpl{db: db}
}

func (r *ResetTokenRepoImpl) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (token, user_id, expiration) VALUES ($1,$2,$3)`,
		t.Token, t.UserID, t.Expiration)
	return err
}

func (r *ResetTokenRepoImpl) Find(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.PasswordResetToken
	err := r.db.QueryRow(ctx,
		`SELECT token, user_id, expiration, consumed_at FROM password_reset_tokens WHERE token=$1`,
		token).Scan(&t.Token, &t.UserID, &t.Expiration, &t.ConsumedAt)
	if err != nil {
		return nil, notFound(err, "reset token")
	}
	return &t, nil
}

func (r *ResetTokenRepoImpl) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx, `
UPDATE password_reset_tokens
SET consumed_at = $2
WHERE token = $1
  AND consumed_at IS NULL
  AND expiration > $2`, token, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ResetTokenRepoImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := r.db.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE expiration < $1 OR consumed_at IS NOT NULL`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ ResetTokenRepo = (*ResetTokenRepoImpl)(nil)
