package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/kv"
	"argus/internal/testsupport"
	"argus/pkg/errors"
)

// Integration tests against a real Redis. Skipped unless REDIS_HOST is set.

func newRedisStore(t *testing.T) *kv.RedisStore {
	t.Helper()

	cfgs := testsupport.LoadStoreConfigsFromEnv(t)
	client := testsupport.NewRedisClient(t, cfgs.Redis)
	return kv.NewRedisStore(client, 5*time.Second)
}

func TestRedisStore_SetGetRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	err := store.Set(ctx, "request:r1", []byte(`{"request_id":"r1"}`), time.Minute)
	require.NoError(t, err)

	data, err := store.Get(ctx, "request:r1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":"r1"}`, string(data))
}

func TestRedisStore_GetMissing(t *testing.T) {
	store := newRedisStore(t)

	_, err := store.Get(context.Background(), "request:absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRedisStore_ListAppendRange(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.ListAppend(ctx, "requests:2026-01-02", "a", "b"))
	require.NoError(t, store.ListAppend(ctx, "requests:2026-01-02", "c"))

	vals, err := store.ListRange(ctx, "requests:2026-01-02", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, vals)

	n, err := store.ListLen(ctx, "requests:2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisStore_IncrByFloat(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "spend:test"))

	v, err := store.IncrByFloat(ctx, "spend:test", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = store.IncrByFloat(ctx, "spend:test", 2.25)
	require.NoError(t, err)
	assert.Equal(t, 3.75, v)

	require.NoError(t, store.Delete(ctx, "spend:test"))
}

func TestRedisStore_ExpireAndDelete(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tmp", []byte("v"), 0))
	require.NoError(t, store.Expire(ctx, "tmp", time.Minute))
	require.NoError(t, store.Delete(ctx, "tmp"))

	_, err := store.Get(ctx, "tmp")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRedisStore_Ping(t *testing.T) {
	store := newRedisStore(t)

	assert.NoError(t, store.Ping(context.Background()))
}
