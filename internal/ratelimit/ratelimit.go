// Package ratelimit applies a fixed-window request limit per (endpoint,
// client) pair. Windows align to wall-clock boundaries so the in-memory and
// Redis backends agree on reset times.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"research-agent/internal/common/config"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/metrics"
)

// Clock supplies the current time. Tests inject a fixed clock to step
// through window boundaries deterministically.
type Clock func() time.Time

// Decision is the outcome of one limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and records one request in a single call, so a denied
// request still counts toward the window.
type Limiter interface {
	CheckAndRecord(ctx context.Context, endpoint, clientKey string) (Decision, error)
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter keeps windows in process memory. Entries from expired
// windows are reset lazily on the next check for the same key.
type MemoryLimiter struct {
	mu     sync.Mutex
	arena  map[string]*window
	max    int
	period time.Duration
	clock  Clock
	logger logger.Logger
}

func NewMemory(cfg config.RateLimitConfig, log logger.Logger) *MemoryLimiter {
	return &MemoryLimiter{
		arena:  make(map[string]*window),
		max:    cfg.MaxPerWindow,
		period: time.Duration(cfg.WindowSecs) * time.Second,
		clock:  time.Now,
		logger: log.With(map[string]interface{}{"component": "ratelimit"}),
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(clock Clock) *MemoryLimiter {
	l.clock = clock
	return l
}

func (l *MemoryLimiter) CheckAndRecord(ctx context.Context, endpoint, clientKey string) (Decision, error) {
	now := l.clock().UTC()
	windowStart := now.Truncate(l.period)
	key := endpoint + ":" + clientKey

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.arena[key]
	if !ok || w.start.Before(windowStart) {
		w = &window{start: windowStart}
		l.arena[key] = w
	}
	w.count++

	resetAt := windowStart.Add(l.period)
	if w.count > l.max {
		metrics.RateLimitDenied.WithLabelValues(endpoint).Inc()
		l.logger.Warn("rate limit exceeded", map[string]interface{}{
			"endpoint": endpoint,
			"client":   clientKey,
			"count":    w.count,
			"resetAt":  resetAt.Format(time.RFC3339),
		})
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: l.max - w.count, ResetAt: resetAt}, nil
}

// RedisLimiter shares windows across replicas through Redis counters. Keys
// embed the window start so stale windows expire on their own.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	period time.Duration
	clock  Clock
	logger logger.Logger
}

func NewRedis(cfg config.RateLimitConfig, rdb *redis.Client, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		max:    cfg.MaxPerWindow,
		period: time.Duration(cfg.WindowSecs) * time.Second,
		clock:  time.Now,
		logger: log.With(map[string]interface{}{"component": "ratelimit"}),
	}
}

func (l *RedisLimiter) WithClock(clock Clock) *RedisLimiter {
	l.clock = clock
	return l
}

func (l *RedisLimiter) CheckAndRecord(ctx context.Context, endpoint, clientKey string) (Decision, error) {
	now := l.clock().UTC()
	windowStart := now.Truncate(l.period)
	resetAt := windowStart.Add(l.period)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", endpoint, clientKey, windowStart.Unix())

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.period)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: a broken limiter backend must not take the API down.
		l.logger.WithError(err).Error("rate limit backend unavailable", map[string]interface{}{
			"endpoint": endpoint,
		})
		return Decision{Allowed: true, Remaining: l.max, ResetAt: resetAt}, err
	}

	count := int(incr.Val())
	if count > l.max {
		metrics.RateLimitDenied.WithLabelValues(endpoint).Inc()
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Remaining: l.max - count, ResetAt: resetAt}, nil
}
