package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "montoit/pkg/domain"
)

const attemptKeyPrefix = "verif:attempts:"

// RedisLimiter is the production Limiter: a fixed-window counter shared
// across instances. INCR plus a first-write EXPIRE keeps it to one round
// trip in the common case.
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID id.UserID, channel string) error {
	key := attemptKeyPrefix + channel + ":" + userID.String()

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Fail open. Shedding verifications because the counter store is down
		// hurts more than a brief window without limits.
		return nil
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	if count > int64(l.maxAttempts) {
		return fmt.Errorf("%w: retry after %s", ErrLimited, l.window)
	}
	return nil
}
