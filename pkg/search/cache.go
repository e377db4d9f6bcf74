package search

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	results   *SearchResults
	expiresAt time.Time
}

// resultCache is a TTL bounded LRU of search results. Cached results are
// shared between callers and must be treated as read-only.
type resultCache struct {
	entries *lru.Cache
	ttl     time.Duration
	group   singleflight.Group
	// generation is bumped by purge so in-flight loads started before it
	// are not stored.
	generation atomic.Uint64
	now        func() time.Time
}

func newResultCache(ttl time.Duration, size int) (*resultCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &resultCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

func (c *resultCache) get(key string) (*SearchResults, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.results, true
}

// load returns the cached results for key, calling fn on a miss. Concurrent
// misses for the same key share one call to fn. The shared call runs without
// the caller's cancellation; each caller stops waiting when its own ctx ends.
func (c *resultCache) load(ctx context.Context, key string, fn func(context.Context) (*SearchResults, error)) (*SearchResults, error) {
	if results, ok := c.get(key); ok {
		logger.Debugf("cache hit")
		return results, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gen := c.generation.Load()
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		results, err := fn(loadCtx)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == gen {
			c.entries.Add(key, cacheEntry{results: results, expiresAt: c.now().Add(c.ttl)})
		}
		return results, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SearchResults), nil
	}
}

func (c *resultCache) purge() {
	c.generation.Add(1)
	c.entries.Purge()
}

func (c *resultCache) len() int {
	return c.entries.Len()
}
