package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactbook/internal/common"
)

// MemoryCache is an in-process Cache used by tests and by deployments that
// run without Redis. Entries honor the TTL set via Expire.
type MemoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := c.expires[key]; ok && time.Now().After(deadline) {
		delete(c.values, key)
		delete(c.expires, key)
	}
	val, ok := c.values[key]
	if !ok {
		return "", common.ErrCacheMiss
	}
	return val, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *MemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		c.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}
