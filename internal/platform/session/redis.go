package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"
	userPrefix    = "user_sessions:"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient parses REDIS_URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	userKey := userPrefix + strconv.FormatInt(userID, 10)

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionPrefix+id, userID, ttl)
		p.SAdd(ctx, userKey, id)
		p.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, UserID: userID}, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	userID, err := s.rdb.Get(ctx, sessionPrefix+id).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, UserID: userID}, nil
}

// Touch slides the session and the user's session set together. Every session
// shares one ttl, so the set outlives each of its members.
func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	userID, err := s.rdb.Get(ctx, sessionPrefix+id).Int64()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var extended *redis.BoolCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		extended = p.Expire(ctx, sessionPrefix+id, ttl)
		p.Expire(ctx, userPrefix+strconv.FormatInt(userID, 10), ttl)
		return nil
	})
	if err != nil {
		return err
	}
	if !extended.Val() {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	userID, err := s.rdb.Get(ctx, sessionPrefix+id).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionPrefix+id)
		p.SRem(ctx, userPrefix+strconv.FormatInt(userID, 10), id)
		return nil
	})
	return err
}

func (s *RedisStore) DestroyUser(ctx context.Context, userID int64) error {
	userKey := userPrefix + strconv.FormatInt(userID, 10)
	ids, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionPrefix+id)
	}
	keys = append(keys, userKey)
	return s.rdb.Del(ctx, keys...).Err()
}

var _ Store = (*RedisStore)(nil)
