// Package cache is a small in-process TTL cache.
package cache

import (
	"sync"
	"time"
)

// Cache maps string keys to values of type V. A zero TTL on Set uses the
// default TTL; a negative TTL, or a zero default, never expires.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[V]
	opts  *options
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

type options struct {
	defaultTTL time.Duration
	maxSize    int
	now        func() time.Time
}

type Option func(*options)

func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = ttl
	}
}

func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func New[V any](opts ...Option) *Cache[V] {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Cache[V]{
		items: make(map[string]cacheItem[V]),
		opts:  o,
	}
}

func (c *Cache[V]) expired(item cacheItem[V], now time.Time) bool {
	return !item.expiration.IsZero() && now.After(item.expiration)
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !found {
		return zero, false
	}

	if c.expired(item, c.opts.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.items[key]; ok && c.expired(cur, c.opts.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return item.value, true
}

func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.opts.maxSize > 0 && len(c.items) >= c.opts.maxSize {
		c.evictOldest()
	}

	if ttl == 0 {
		ttl = c.opts.defaultTTL
	}

	var expiration time.Time
	if ttl > 0 {
		expiration = c.opts.now().Add(ttl)
	}

	c.items[key] = cacheItem[V]{
		value:      value,
		expiration: expiration,
	}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem[V])
}

func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest drops an expired entry if there is one, otherwise the entry
// closest to expiring. Entries without expiry go last.
func (c *Cache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	now := c.opts.now()

	for key, item := range c.items {
		if c.expired(item, now) {
			delete(c.items, key)
			return
		}
		if item.expiration.IsZero() {
			if oldestKey == "" {
				oldestKey = key
			}
			continue
		}
		if oldestTime.IsZero() || item.expiration.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.expiration
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
