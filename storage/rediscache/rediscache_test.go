package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func newTestLayer(t *testing.T) (*Layer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestConnectPing(t *testing.T) {
	l, _ := newTestLayer(t)
	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))
	assert.True(t, l.Ping(ctx))
}

func TestSetGetRoundTrip(t *testing.T) {
	l, _ := newTestLayer(t)
	ctx := context.Background()
	require.NoError(t, l.Set(ctx, "k", "hello", time.Minute))
	v, ok := l.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestGetMissReturnsFalse(t *testing.T) {
	l, _ := newTestLayer(t)
	_, ok := l.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestDeleteAndExists(t *testing.T) {
	l, _ := newTestLayer(t)
	ctx := context.Background()
	require.NoError(t, l.Set(ctx, "k", 1, time.Minute))
	assert.True(t, l.Exists(ctx, "k"))
	assert.True(t, l.Delete(ctx, "k"))
	assert.False(t, l.Exists(ctx, "k"))
}

func TestIncrementNative(t *testing.T) {
	l, _ := newTestLayer(t)
	ctx := context.Background()
	v, err := l.Increment(ctx, "counter", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = l.Increment(ctx, "counter", 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestClearWithPrefix(t *testing.T) {
	client, mr := func() (*redis.Client, *miniredis.Miniredis) {
		mr := miniredis.RunT(t)
		return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
	}()
	defer client.Close()
	_ = mr

	l := New(client, WithPrefix("ns"))
	ctx := context.Background()
	require.NoError(t, l.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, l.Set(ctx, "b", 2, time.Minute))

	// unrelated key outside the prefix must survive Clear
	require.NoError(t, client.Set(ctx, "other:key", "v", time.Minute).Err())

	require.NoError(t, l.Clear(ctx))
	assert.False(t, l.Exists(ctx, "a"))
	assert.False(t, l.Exists(ctx, "b"))
	exists, err := client.Exists(ctx, "other:key").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestExpireAppliesTTL(t *testing.T) {
	l, mr := newTestLayer(t)
	ctx := context.Background()
	require.NoError(t, l.Set(ctx, "k", 1, time.Hour))
	ok, err := l.Expire(ctx, "k", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	mr.FastForward(10 * time.Millisecond)
	assert.False(t, l.Exists(ctx, "k"))
}
