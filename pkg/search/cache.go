package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached wraps a Searcher with an expiring LRU of recent answers.
// Errors are never cached.
type Cached struct {
	next  Searcher
	cache *expirable.LRU[string, []Result]
}

// NewCached creates a cache of size entries that expire after ttl.
func NewCached(next Searcher, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []Result](size, nil, ttl),
	}
}

// Search implements Searcher.
func (c *Cached) Search(ctx context.Context, query string, n int) ([]Result, error) {
	key := fmt.Sprintf("%d\x00%s", n, query)
	if results, ok := c.cache.Get(key); ok {
		return results, nil
	}
	results, err := c.next.Search(ctx, query, n)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, results)
	return results, nil
}

// Purge drops every cached answer.
func (c *Cached) Purge() {
	c.cache.Purge()
}
