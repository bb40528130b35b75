package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another process owns the dispatch lease.
var ErrLeaseHeld = errors.New("dispatch lease held elsewhere")

// Lease serialises passes across processes.
type Lease interface {
	// Acquire takes the lease and returns its release function.
	Acquire(ctx context.Context) (func(), error)
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

type leaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLease is a Lease backed by a Redis key with a TTL.
type RedisLease struct {
	client leaseClient
	key    string
	ttl    time.Duration
}

// NewRedisLease returns a lease on key. The TTL bounds how long a crashed
// holder can block other processes.
func NewRedisLease(client leaseClient, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLease{client: client, key: key, ttl: ttl}
}

// Acquire implements Lease.
func (l *RedisLease) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err()
	}, nil
}
