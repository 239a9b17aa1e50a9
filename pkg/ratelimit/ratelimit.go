// Package ratelimit implements a Redis backed fixed-window counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a key has exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Result describes the state of a key after Allow.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// FixedWindow allows Limit events per Window for each key. A nil *FixedWindow
// allows everything.
type FixedWindow struct {
	client goredis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewFixedWindow returns a limiter storing counters under prefix.
func NewFixedWindow(client goredis.UniversalClient, prefix string, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one event for key. It returns ErrRateLimited alongside the
// result once the window is exhausted.
func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return Result{Allowed: true}, nil
	}

	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit ttl: %w", err)
	}
	if ttl < 0 {
		// Counter survived without an expiry; start a fresh window.
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit expire: %w", err)
		}
		ttl = l.window
	}

	res := Result{
		Allowed:   count <= int64(l.limit),
		Remaining: max(l.limit-int(count), 0),
		ResetIn:   ttl,
	}
	if !res.Allowed {
		return res, ErrRateLimited
	}
	return res, nil
}
