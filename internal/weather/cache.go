package weather

import (
	"context"
	"sync"
	"time"
)

// CachedFetcher memoizes successful fetches per city with a TTL equal to
// the collection interval, so repeated ticks inside one interval hit the
// provider at most once per city. Failures are never cached; a city that
// failed is retried on the next call.
type CachedFetcher struct {
	source Fetcher
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	obs     Observation
	fetched time.Time
}

func NewCachedFetcher(source Fetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedFetcher) Name() string { return c.source.Name() + " [cached]" }

func (c *CachedFetcher) Configured() bool { return c.source.Configured() }

func (c *CachedFetcher) Fetch(ctx context.Context, canonicalCity string) (Observation, error) {
	c.mu.Lock()
	entry, found := c.entries[canonicalCity]
	if found && time.Since(entry.fetched) < c.ttl {
		c.hits++
		c.mu.Unlock()
		return entry.obs, nil
	}
	c.misses++
	c.mu.Unlock()

	obs, err := c.source.Fetch(ctx, canonicalCity)
	if err != nil {
		return Observation{}, err
	}

	c.mu.Lock()
	c.entries[canonicalCity] = cacheEntry{obs: obs, fetched: time.Now()}
	c.mu.Unlock()

	return obs, nil
}

// Reset drops every memoized entry. The backing store is untouched.
func (c *CachedFetcher) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Stats returns cache hit and miss counters.
func (c *CachedFetcher) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

var _ Fetcher = (*CachedFetcher)(nil)
