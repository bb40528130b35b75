package kv

import (
	"context"
	"testing"
	"time"
)

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{Addr: "localhost:6379", PoolSize: 3}.withDefaults()
	if got.PoolSize != 3 {
		t.Fatalf("expected explicit pool size to be kept, got %d", got.PoolSize)
	}
	if got.DialTimeout != 3*time.Second || got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: dial=%s ping=%s", got.DialTimeout, got.PingTimeout)
	}
}

func TestOpenRequiresAddr(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}
