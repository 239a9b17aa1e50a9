// Package cache is an in-process TTL cache with per-key load coalescing.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
}

// MetricsHooks are invoked with the outcome of each lookup.
type MetricsHooks struct {
	OnHit  func()
	OnMiss func()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values of type V. Failed loads are not stored.
type Cache[V any] struct {
	mu      sync.RWMutex
	items   map[string]*entry[V]
	order   []string
	opts    Options
	metrics MetricsHooks
	sf      singleflight.Group
	now     func() time.Time
}

func New[V any](opts Options, hooks MetricsHooks) *Cache[V] {
	return &Cache[V]{
		items:   make(map[string]*entry[V]),
		order:   make([]string, 0, 128),
		opts:    opts,
		metrics: hooks,
		now:     time.Now,
	}
}

type Loader[V any] func(ctx context.Context, key string) (V, error)

// Get returns the cached value for key or loads it. Concurrent misses for the
// same key share one loader call.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		if c.metrics.OnHit != nil {
			c.metrics.OnHit()
		}
		return v, nil
	}

	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss()
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		val, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Set(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil //nolint:errcheck // type guaranteed by loader signature
}

// Set stores val for the configured TTL.
func (c *Cache[V]) Set(key string, val V) {
	e := &entry[V]{value: val, expiresAt: c.now().Add(c.opts.TTL)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
}

// Peek returns a live cached value without triggering a load.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.removeFromOrder(key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache[V]) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	// FIFO eviction
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}
