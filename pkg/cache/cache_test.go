package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheSetPeekDelete(t *testing.T) {
	c := New[string](Options{TTL: time.Minute, MaxEntries: 10}, MetricsHooks{})

	c.Set("alpha", "value")
	if val, ok := c.Peek("alpha"); !ok || val != "value" {
		t.Fatalf("expected peeked value")
	}

	c.Delete("alpha")
	if _, ok := c.Peek("alpha"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestCacheGetHitMissExpiry(t *testing.T) {
	var hits, misses int32
	c := New[int](Options{TTL: time.Minute}, MetricsHooks{
		OnHit:  func() { atomic.AddInt32(&hits, 1) },
		OnMiss: func() { atomic.AddInt32(&misses, 1) },
	})
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	calls := 0
	loader := func(_ context.Context, _ string) (int, error) {
		calls++
		return calls, nil
	}

	if v, err := c.Get(context.Background(), "alpha", loader); err != nil || v != 1 {
		t.Fatalf("expected first load, got %d %v", v, err)
	}
	if v, err := c.Get(context.Background(), "alpha", loader); err != nil || v != 1 {
		t.Fatalf("expected cache hit, got %d %v", v, err)
	}

	now = now.Add(time.Minute)
	if v, err := c.Get(context.Background(), "alpha", loader); err != nil || v != 2 {
		t.Fatalf("expected reload after expiry, got %d %v", v, err)
	}
	if hits != 1 || misses != 2 {
		t.Fatalf("expected 1 hit and 2 misses, got %d/%d", hits, misses)
	}
}

func TestCacheErrorsAreNotStored(t *testing.T) {
	c := New[string](Options{TTL: time.Minute}, MetricsHooks{})
	boom := errors.New("boom")

	if _, err := c.Get(context.Background(), "k", func(context.Context, string) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed load should not be cached")
	}
	if v, err := c.Get(context.Background(), "k", func(context.Context, string) (string, error) { return "ok", nil }); err != nil || v != "ok" {
		t.Fatalf("expected retry to load, got %q %v", v, err)
	}
}

func TestCacheCoalescesConcurrentLoads(t *testing.T) {
	c := New[int](Options{TTL: time.Minute}, MetricsHooks{})
	var calls int32
	release := make(chan struct{})
	loader := func(context.Context, string) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Get(context.Background(), "shared", loader); err != nil || v != 7 {
				t.Errorf("unexpected result %d %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one loader call, got %d", got)
	}
}

func TestCacheEviction(t *testing.T) {
	c := New[int](Options{TTL: time.Minute, MaxEntries: 2}, MetricsHooks{})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Peek("a"); ok {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, ok := c.Peek("c"); !ok {
		t.Fatalf("expected newest entry kept")
	}
}
