package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a request budget: Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter spends one unit of the budget identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Check is Allow reduced to an error: ErrRateLimited when denied.
func Check(ctx context.Context, l Limiter, key string) error {
	d, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrRateLimited
	}
	return nil
}

// RedisLimiter enforces a fixed-window Policy with Redis counters.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	policy Policy
}

// NewRedis creates a [RedisLimiter]. prefix namespaces the keys, e.g.
// "gsa:rl".
func NewRedis(client redis.UniversalClient, prefix string, p Policy) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, policy: p}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + ":" + k
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.key(key)

	count, err := l.incrementWithTTL(ctx, k, l.policy.Window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Limit: l.policy.Limit}
	if count <= int64(l.policy.Limit) {
		d.Allowed = true
		d.Remaining = l.policy.Limit - int(count)
		return d, nil
	}

	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		ttl = l.policy.Window
	}
	d.RetryAfter = ttl
	return d, nil
}

// Reset clears the window for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
