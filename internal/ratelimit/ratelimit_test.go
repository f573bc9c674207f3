package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/common/config"
	"research-agent/internal/common/logger"
)

func fixedClock(at time.Time) (Clock, *time.Time) {
	now := at
	return func() time.Time { return now }, &now
}

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: true, MaxPerWindow: 3, WindowSecs: 60}
}

func TestMemoryLimiter_AllowsUpToMaxThenDenies(t *testing.T) {
	clock, _ := fixedClock(time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC))
	limiter := NewMemory(testConfig(), logger.NewTestLogger(t)).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.CheckAndRecord(ctx, "/api/research", "client-a")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.CheckAndRecord(ctx, "/api/research", "client-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC), d.ResetAt)
}

func TestMemoryLimiter_WindowRollsOver(t *testing.T) {
	clock, now := fixedClock(time.Date(2026, 8, 1, 12, 0, 59, 0, time.UTC))
	limiter := NewMemory(testConfig(), logger.NewTestLogger(t)).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		limiter.CheckAndRecord(ctx, "/api/research", "client-a")
	}
	d, _ := limiter.CheckAndRecord(ctx, "/api/research", "client-a")
	require.False(t, d.Allowed)

	*now = time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	d, err := limiter.CheckAndRecord(ctx, "/api/research", "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window must reset the count")
	assert.Equal(t, 2, d.Remaining)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	clock, _ := fixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	limiter := NewMemory(testConfig(), logger.NewTestLogger(t)).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		limiter.CheckAndRecord(ctx, "/api/research", "client-a")
	}

	d, err := limiter.CheckAndRecord(ctx, "/api/research", "client-b")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other clients are unaffected")

	d, err = limiter.CheckAndRecord(ctx, "/healthz", "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other endpoints are unaffected")
}

func TestRedisLimiter_SharedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	clock, _ := fixedClock(time.Date(2026, 8, 1, 12, 0, 10, 0, time.UTC))
	first := NewRedis(testConfig(), rdb, logger.NewTestLogger(t)).WithClock(clock)
	second := NewRedis(testConfig(), rdb, logger.NewTestLogger(t)).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := first.CheckAndRecord(ctx, "/api/research", "client-a")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := second.CheckAndRecord(ctx, "/api/research", "client-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "replicas share the same window counter")
}

func TestRedisLimiter_FailsOpenWhenBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	clock, _ := fixedClock(time.Date(2026, 8, 1, 12, 0, 10, 0, time.UTC))
	limiter := NewRedis(testConfig(), rdb, logger.NewTestLogger(t)).WithClock(clock)

	d, err := limiter.CheckAndRecord(context.Background(), "/api/research", "client-a")
	assert.Error(t, err)
	assert.True(t, d.Allowed, "limiter outages must not block requests")
}
