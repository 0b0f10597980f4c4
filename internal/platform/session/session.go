package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID     string
	UserID int64
}

// Store keeps server-side sessions keyed by the opaque id sent in the cookie.
type Store interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Destroy(ctx context.Context, id string) error
	DestroyUser(ctx context.Context, userID int64) error
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
