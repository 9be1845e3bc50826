package search

import (
	"sync"
	"time"

	"giftprobe/internal/domain/catalog"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	page      catalog.ResultPage
	expiresAt time.Time
}

// pageCache remembers result pages by request URL so identical queries in
// later rounds or other test cases do not hit the API again.
type pageCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cacheEntry]
	ttl time.Duration
	now func() time.Time
}

// newPageCache returns nil (caching disabled) when size <= 0. A ttl <= 0
// disables expiry.
func newPageCache(size int, ttl time.Duration) *pageCache {
	if size <= 0 {
		return nil
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil
	}
	return &pageCache{lru: cache, ttl: ttl, now: time.Now}
}

func (c *pageCache) get(key string) (catalog.ResultPage, bool) {
	if c == nil {
		return catalog.ResultPage{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Get(key)
	if !ok {
		return catalog.ResultPage{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return catalog.ResultPage{}, false
	}
	return entry.page, true
}

func (c *pageCache) add(key string, page catalog.ResultPage) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{page: page}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.lru.Add(key, entry)
}
