package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketbrief/pkg/metrics"
)

// DefaultCacheTTL is how long movers and news responses stay fresh. Quotes
// are never cached; a stale price is worse than a slower answer.
const DefaultCacheTTL = 45 * time.Second

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// CachedSource wraps a Source with a read-through cache over Movers and
// News. Concurrent misses for the same key are deduplicated with
// singleflight so a burst of webhook calls costs one upstream request.
type CachedSource struct {
	source Source
	ttl    time.Duration
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry

	now func() time.Time
}

// NewCachedSource wraps source with the default TTL.
func NewCachedSource(source Source) *CachedSource {
	return &CachedSource{
		source:  source,
		ttl:     DefaultCacheTTL,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Quote passes through uncached.
func (c *CachedSource) Quote(ctx context.Context, symbol string) (*QuoteResult, error) {
	return c.source.Quote(ctx, symbol)
}

// Movers serves from cache when fresh, otherwise fetches once per key.
func (c *CachedSource) Movers(ctx context.Context, direction string, limit int) (*MoversResult, error) {
	if direction != "losers" {
		direction = "gainers"
	}
	limit = clamp(limit, 1, 20)
	key := fmt.Sprintf("movers:%s:%d", direction, limit)

	value, err := c.lookup(ctx, "movers", key, func(ctx context.Context) (interface{}, error) {
		return c.source.Movers(ctx, direction, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.(*MoversResult), nil
}

// News serves from cache when fresh, otherwise fetches once per key.
func (c *CachedSource) News(ctx context.Context, ticker string, limit int) (*NewsResult, error) {
	limit = clamp(limit, 1, 10)
	key := fmt.Sprintf("news:%s:%d", ticker, limit)

	value, err := c.lookup(ctx, "news", key, func(ctx context.Context) (interface{}, error) {
		return c.source.News(ctx, ticker, limit)
	})
	if err != nil {
		return nil, err
	}
	return value.(*NewsResult), nil
}

func (c *CachedSource) lookup(ctx context.Context, endpoint, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expiresAt) {
		metrics.RecordCacheLookup(endpoint, "hit")
		return entry.value, nil
	}
	metrics.RecordCacheLookup(endpoint, "miss")

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{value: fetched, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
