package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := NewRedisCacheFromClient(client, "test:")
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestRedisRateLimitFixedWindow(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rc.CheckRateLimit(ctx, "login:alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, err := rc.CheckRateLimit(ctx, "login:alice", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("test:ratelimit:login:alice"))

	ok, err = rc.CheckRateLimit(ctx, "login:bob", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	mr.FastForward(time.Minute)
	ok, err = rc.CheckRateLimit(ctx, "login:alice", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new window after expiry")
}

func TestRedisReset(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := rc.CheckRateLimit(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, rc.Reset(ctx, "k"))

	ok, err := rc.CheckRateLimit(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisHealthCheck(t *testing.T) {
	rc, mr := newTestRedis(t)
	assert.NoError(t, rc.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, rc.HealthCheck(context.Background()))
}

func TestNewRedisCacheFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, &Config{Enabled: true, Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestMemoryRateLimit(t *testing.T) {
	mc := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := mc.CheckRateLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := mc.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = mc.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, mc.Cleanup())
}

func TestNewRateLimiterFallsBackToMemory(t *testing.T) {
	rl, err := NewRateLimiter(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	_, ok := rl.(*MemoryCache)
	assert.True(t, ok)
}
