package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// IdempotencyTTL is how long an Idempotency-Key keeps pointing at its order.
const IdempotencyTTL = 24 * time.Hour

type IdempotencyRepo interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepoImpl struct {
	db DB
}

func NewIdempotencyRepo(db DB) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{db: db}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// lookupIdempotency returns the order created under key by userID, or 0.
func lookupIdempotency(ctx context.Context, q querier, userID int64, key string) (int64, error) {
	var orderID int64
	err := q.QueryRow(ctx,
		`SELECT order_id FROM order_idempotency WHERE key_hash=$1 AND user_id=$2 AND expires_at > now()`,
		hashKey(key), userID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return orderID, err
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM order_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var _ IdempotencyRepo = (*IdempotencyRepoImpl)(nil)
