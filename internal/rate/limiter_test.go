package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, p Policy) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "gsa:rl:login", p), mr
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, Policy{Limit: 5, Window: time.Hour})

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.ErrorIs(t, Check(ctx, l, "10.0.0.1"), ErrRateLimited)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	mr.FastForward(time.Hour)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window resets after expiry")
}

func TestRedisLimiterReset(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLimiter(t, Policy{Limit: 1, Window: time.Minute})

	require.NoError(t, Check(ctx, l, "k"))
	assert.True(t, mr.Exists("gsa:rl:login:k"))
	require.ErrorIs(t, Check(ctx, l, "k"), ErrRateLimited)

	require.NoError(t, l.Reset(ctx, "k"))
	assert.NoError(t, Check(ctx, l, "k"))
}

func TestRedisLimiterUnavailable(t *testing.T) {
	l, mr := newRedisLimiter(t, Policy{Limit: 1, Window: time.Minute})
	mr.Close()

	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}

func TestLocalLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(Policy{Limit: 5, Window: time.Hour}, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		require.NoError(t, Check(ctx, l, "ip"), "attempt %d", i+1)
	}
	d, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(12*time.Minute), float64(d.RetryAfter), float64(time.Second))

	now = now.Add(13 * time.Minute)
	assert.NoError(t, Check(ctx, l, "ip"), "one token refills per window/limit")
}
