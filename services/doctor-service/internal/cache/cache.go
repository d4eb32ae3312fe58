// Package cache is a small read-through cache over doctor listings.
// Entries are invalidated whenever a write changes what they render.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is what the handlers need from a cache. RedisStore is the
// production implementation; tests use an in-memory one.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = s.rdb.Del(context.WithoutCancel(ctx), keys...).Err()
}

// Null is a no-op store for deployments without Redis.
type Null struct{}

func (Null) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Null) Set(context.Context, string, []byte, time.Duration) {}
func (Null) Delete(context.Context, ...string) {}

const (
	KeyTopRated = "doctors:top-rated"
)

func KeyDetails(doctorID string) string {
	return "doctor:details:" + doctorID
}
