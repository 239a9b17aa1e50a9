package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int, window time.Duration) (*FixedWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFixedWindow(client, "nonce:", limit, window), mr
}

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	l, mr := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "evm:0xabc")
		if err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		if res.Remaining != 2-i {
			t.Fatalf("attempt %d: remaining = %d", i+1, res.Remaining)
		}
	}

	res, err := l.Allow(ctx, "evm:0xabc")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if res.Allowed || res.ResetIn <= 0 || res.ResetIn > time.Minute {
		t.Fatalf("unexpected result %+v", res)
	}

	// Other keys are independent.
	if _, err := l.Allow(ctx, "evm:0xdef"); err != nil {
		t.Fatalf("independent key limited: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if _, err := l.Allow(ctx, "evm:0xabc"); err != nil {
		t.Fatalf("expected fresh window after expiry, got %v", err)
	}
}

func TestFixedWindowSetsExpiry(t *testing.T) {
	l, mr := newLimiter(t, 5, 30*time.Second)
	if _, err := l.Allow(context.Background(), "k"); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ttl := mr.TTL("nonce:k"); ttl != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", ttl)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *FixedWindow
	res, err := l.Allow(context.Background(), "anything")
	if err != nil || !res.Allowed {
		t.Fatalf("nil limiter should allow, got %+v %v", res, err)
	}
}

func TestFixedWindowRedisDown(t *testing.T) {
	l, mr := newLimiter(t, 1, time.Minute)
	mr.Close()
	if _, err := l.Allow(context.Background(), "k"); err == nil || errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
