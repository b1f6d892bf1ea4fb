// Package ratelimit implements a fixed-window request limiter backed by a
// shared counter store, so quotas hold across multiple server processes.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Config bounds an action: at most MaxRequests per Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Preset quotas per user.
var (
	Build      = Config{MaxRequests: 5, Window: time.Hour}
	CreateGame = Config{MaxRequests: 10, Window: time.Hour}
	Comment    = Config{MaxRequests: 30, Window: time.Hour}
	AIGenerate = Config{MaxRequests: 20, Window: time.Hour}
	API        = Config{MaxRequests: 100, Window: time.Minute}
)

// Counter increments a key within a window and returns the count after the
// increment. The first increment of a window starts its expiry.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter applies fixed-window quotas keyed by identifier and action.
//
// Counter errors fail OPEN: an unavailable counter store allows the request
// rather than blocking all users behind an infrastructure incident. This is
// a deliberate trade-off; every failure is logged.
type Limiter struct {
	counter Counter
}

func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Allow reports whether the identifier may perform the action now.
func (l *Limiter) Allow(ctx context.Context, identifier, action string, cfg Config) bool {
	key := fmt.Sprintf("ratelimit:%s:%s", identifier, action)
	count, err := l.counter.Incr(ctx, key, cfg.Window)
	if err != nil {
		log.Printf("rate limit check failed for %s, allowing request: %v", key, err)
		return true
	}
	return count <= int64(cfg.MaxRequests)
}

// MemCounter is an in-process counter. Only correct for single-instance
// deployments; multi-process setups must use the Redis counter.
type MemCounter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemCounter() *MemCounter {
	return &MemCounter{windows: make(map[string]*memWindow)}
}

var _ Counter = (*MemCounter)(nil)

func (c *MemCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	w, ok := c.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}
