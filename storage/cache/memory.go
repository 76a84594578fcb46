package cache

import (
	"context"
	"sync"

	"github.com/trezcool/certstudio/core/certificate"
)

const defaultMemoryEntries = 64

// MemoryCache is a bounded, process-local cache. The oldest entry is evicted first.
type MemoryCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string][]byte
}

var _ certificate.RasterCache = (*MemoryCache)(nil)

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	return &MemoryCache{max: maxEntries, items: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	png, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), png...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, png []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		if len(c.order) == c.max {
			delete(c.items, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.items[key] = append([]byte(nil), png...)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
