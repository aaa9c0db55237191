package media

import (
	"errors"
	"sync"
)

// Cache memoizes inspection results by source string.
//
// Concurrent requests for the same uncached source may run inspect more
// than once; only the first stored result is kept.
type Cache struct {
	mu    sync.Mutex
	items map[string]result
}

type result struct {
	info Info
	err  error
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]result)}
}

// Get returns a cached result or runs inspect on src and caches it.
// ErrExternalSource results are cached as well. If the cache is nil,
// inspect is invoked directly.
func (c *Cache) Get(src string, inspect func(string) (Info, error)) (Info, error) {
	if inspect == nil {
		return Info{}, errors.New("media: inspect is nil")
	}
	if c == nil {
		return inspect(src)
	}

	c.mu.Lock()
	if r, ok := c.items[src]; ok {
		c.mu.Unlock()
		return r.info, r.err
	}
	c.mu.Unlock()

	info, err := inspect(src)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.items[src]; ok {
		return existing.info, existing.err
	}
	c.items[src] = result{info: info, err: err}
	return info, err
}

// Len returns the number of cached sources.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
