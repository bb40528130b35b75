package messaging

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docchaser/internal/shared/metrics"
	"docchaser/internal/shared/telemetry"
)

// Counter counts sends for the current calendar day. Implementations reset
// when the date rolls over.
type Counter interface {
	Increment(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu  sync.Mutex
	day string
	n   int64
	now func() time.Time
}

// NewMemoryCounter returns an in-memory Counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now}
}

func (c *MemoryCounter) rollover() {
	if today := dayKey(c.now()); today != c.day {
		c.day = today
		c.n = 0
	}
}

// Increment adds one send and returns today's total.
func (c *MemoryCounter) Increment(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	c.n++
	return c.n, nil
}

// Count returns today's total.
func (c *MemoryCounter) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return c.n, nil
}

type redisCounterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisCounter shares the daily count across processes. Each day has its own
// key which expires after two days.
type RedisCounter struct {
	rdb    redisCounterClient
	prefix string
	now    func() time.Time
}

// NewRedisCounter returns a Counter backed by rdb.
func NewRedisCounter(rdb redisCounterClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "docchaser:emails_sent"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix, now: time.Now}
}

func (c *RedisCounter) key() string {
	return c.prefix + ":" + dayKey(c.now())
}

// Increment adds one send and returns today's total.
func (c *RedisCounter) Increment(ctx context.Context) (int64, error) {
	key := c.key()
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return n, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return n, nil
}

// Count returns today's total.
func (c *RedisCounter) Count(ctx context.Context) (int64, error) {
	key := c.key()
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// DailyLimiter enforces a per-day send quota and warns as it fills up.
type DailyLimiter struct {
	counter  Counter
	limit    int64
	warnAt   int64
	provider string
}

// NewDailyLimiter returns a limiter over counter. warnRatio is the fraction
// of limit at which a warning is logged.
func NewDailyLimiter(counter Counter, provider string, limit int, warnRatio float64) *DailyLimiter {
	if limit <= 0 {
		limit = 2000
	}
	if warnRatio <= 0 || warnRatio > 1 {
		warnRatio = 0.8
	}
	return &DailyLimiter{
		counter:  counter,
		limit:    int64(limit),
		warnAt:   int64(math.Ceil(float64(limit) * warnRatio)),
		provider: provider,
	}
}

// Allow returns ErrDailyLimitReached when today's quota is used up.
func (l *DailyLimiter) Allow(ctx context.Context) error {
	n, err := l.counter.Count(ctx)
	if err != nil {
		// A broken counter must not stop delivery.
		telemetry.Warn("messaging.counter.read_failed", map[string]any{"provider": l.provider, "error": err})
		return nil
	}
	if n >= l.limit {
		return fmt.Errorf("%s %d/%d: %w", l.provider, n, l.limit, ErrDailyLimitReached)
	}
	return nil
}

// Record counts one successful send.
func (l *DailyLimiter) Record(ctx context.Context) int64 {
	n, err := l.counter.Increment(ctx)
	if err != nil {
		telemetry.Warn("messaging.counter.increment_failed", map[string]any{"provider": l.provider, "error": err})
		return n
	}
	metrics.SetEmailsSentToday(n)
	fields := map[string]any{"provider": l.provider, "sent_today": n, "limit": l.limit}
	if n >= l.warnAt {
		telemetry.Warn("messaging.daily_limit.approaching", fields)
	} else {
		telemetry.Info("messaging.daily_count", fields)
	}
	return n
}
