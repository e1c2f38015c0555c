package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "montoit/pkg/domain"
)

// MemoryLimiter is the single-instance Limiter used in development and tests.
type MemoryLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	counters    map[string]*windowCounter
}

type windowCounter struct {
	count     int
	expiresAt time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		counters:    make(map[string]*windowCounter),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, userID id.UserID, channel string) error {
	key := channel + ":" + userID.String()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &windowCounter{expiresAt: now.Add(l.window)}
		l.counters[key] = c
	}
	c.count++
	if c.count > l.maxAttempts {
		return fmt.Errorf("%w: retry after %s", ErrLimited, c.expiresAt.Sub(now).Round(time.Second))
	}
	return nil
}
