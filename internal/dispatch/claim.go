package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAttemptClaimed is returned when another sender holds an attempt.
var ErrAttemptClaimed = errors.New("attempt claimed by another sender")

// Claims hands out per-attempt send claims. A holder re-reads the attempt
// before sending, so a released claim on a sent attempt never sends twice.
type Claims interface {
	Claim(ctx context.Context, attemptID string) (func(), error)
}

// MemoryClaims serialises sends within one process.
type MemoryClaims struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{held: make(map[string]struct{})}
}

// Claim implements Claims.
func (m *MemoryClaims) Claim(ctx context.Context, attemptID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[attemptID]; ok {
		return nil, ErrAttemptClaimed
	}
	m.held[attemptID] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.held, attemptID)
		m.mu.Unlock()
	}, nil
}

// RedisClaims claims attempts with one short-lived Redis key each, shared by
// the api and worker processes.
type RedisClaims struct {
	client leaseClient
	prefix string
	ttl    time.Duration
}

func NewRedisClaims(client leaseClient, prefix string, ttl time.Duration) *RedisClaims {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisClaims{client: client, prefix: prefix, ttl: ttl}
}

// Claim implements Claims.
func (r *RedisClaims) Claim(ctx context.Context, attemptID string) (func(), error) {
	release, err := NewRedisLease(r.client, r.prefix+attemptID, r.ttl).Acquire(ctx)
	if errors.Is(err, ErrLeaseHeld) {
		return nil, ErrAttemptClaimed
	}
	return release, err
}
