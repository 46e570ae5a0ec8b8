// Package cache provides a single-value TTL cache with an explicit loader
// and an injectable clock.
package cache

import (
	"context"
	"sync"
	"time"
)

// Loader produces a fresh value on cache miss or expiry.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache holds one value for a fixed TTL. Expiry is checked on read; there
// is no background sweeper. A failed load leaves any previously cached
// value untouched.
type Cache[T any] struct {
	ttl  time.Duration
	load Loader[T]
	now  func() time.Time

	mu        sync.Mutex
	value     T
	loadedAt  time.Time
	populated bool
}

func New[T any](ttl time.Duration, load Loader[T]) *Cache[T] {
	return NewWithClock(ttl, load, time.Now)
}

// NewWithClock injects the time source, so expiry is testable without
// sleeping.
func NewWithClock[T any](ttl time.Duration, load Loader[T], now func() time.Time) *Cache[T] {
	return &Cache[T]{
		ttl:  ttl,
		load: load,
		now:  now,
	}
}

// Get returns the cached value, reloading it when expired, absent, or
// forceRefresh is set.
func (c *Cache[T]) Get(ctx context.Context, forceRefresh bool) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.populated && c.now().Sub(c.loadedAt) < c.ttl {
		return c.value, nil
	}

	value, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.value = value
	c.loadedAt = c.now()
	c.populated = true
	return value, nil
}

// Invalidate drops the cached value so the next Get reloads.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.mu.Unlock()
}
