package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"argus/pkg/errors"
)

// RedisStore implements Store on top of a Redis client. Every call is
// bounded by opTimeout so a stalled backend surfaces as ErrUnavailable
// instead of blocking the caller.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisStore creates a Redis-backed store. opTimeout bounds each
// operation; zero disables the bound.
func NewRedisStore(client *redis.Client, opTimeout time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		opTimeout: opTimeout,
	}
}

// Set stores value under key with the given TTL
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "set %s: %v", key, err)
	}
	return nil
}

// Get returns the value stored under key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "get %s: %v", key, err)
	}
	return data, nil
}

// ListAppend appends values to the tail of the list at key
func (s *RedisStore) ListAppend(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.client.RPush(ctx, key, args...).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "rpush %s: %v", key, err)
	}
	return nil
}

// ListRange returns list elements in [start, stop]
func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "lrange %s: %v", key, err)
	}
	return vals, nil
}

// ListLen returns the length of the list at key
func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUnavailable, "llen %s: %v", key, err)
	}
	return n, nil
}

// IncrByFloat adds delta to the numeric value at key
func (s *RedisStore) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	v, err := s.client.IncrByFloat(ctx, key, delta).Result()
	if err != nil {
		return 0, errors.Wrapf(errors.ErrUnavailable, "incrbyfloat %s: %v", key, err)
	}
	return v, nil
}

// Expire sets or refreshes the TTL on key
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "expire %s: %v", key, err)
	}
	return nil
}

// Delete removes the given keys
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "del: %v", err)
	}
	return nil
}

// Ping verifies the store is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "ping: %v", err)
	}
	return nil
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}
