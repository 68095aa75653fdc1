// Package guard provides a Redis-backed store implementation.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements KVStore on a shared Redis deployment so that
// multiple service instances see the same counters and blocklist.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a store around an existing client.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Healthy reports whether Redis answers a ping.
func (s *RedisStore) Healthy(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	return s.client.Ping(ctx).Err() == nil
}

// Get returns the value for key, reporting absence for missing keys.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, errors.New("redis store is not configured")
	}
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put stores value under key with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("redis store is not configured")
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key if present.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return errors.New("redis store is not configured")
	}
	return s.client.Del(ctx, key).Err()
}
