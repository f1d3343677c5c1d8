package weather

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FreshnessWindow bounds how old an observation may be and still count as
// the "latest" one for a city.
const FreshnessWindow = time.Hour

// LatestView is the single read path used by the presentation layer: the
// most recent observation per selected city no older than FreshnessWindow.
// Results are memoized per city set with a TTL equal to the collection
// interval, so dashboard redraws inside one interval do not re-query the
// store.
type LatestView struct {
	store LatestSource
	ttl   time.Duration

	mu      sync.Mutex
	results map[string]latestEntry
}

type latestEntry struct {
	rows    []Observation
	queried time.Time
}

func NewLatestView(store LatestSource, ttl time.Duration) *LatestView {
	return &LatestView{
		store:   store,
		ttl:     ttl,
		results: make(map[string]latestEntry),
	}
}

// Latest returns at most one observation per selected city, ascending by
// city name. An empty result is not an error: it means no selected city
// has been observed within the freshness window.
func (v *LatestView) Latest(ctx context.Context, cities []string) ([]Observation, error) {
	requests := CanonicalizeAll(cities)
	if len(requests) == 0 {
		return nil, nil
	}

	canonical := make([]string, len(requests))
	for i, req := range requests {
		canonical[i] = req.Canonical
	}
	key := strings.Join(canonical, "\x00")

	v.mu.Lock()
	entry, found := v.results[key]
	v.mu.Unlock()
	if found && time.Since(entry.queried) < v.ttl {
		return entry.rows, nil
	}

	rows, err := v.store.LatestWithin(ctx, canonical, FreshnessWindow)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.results[key] = latestEntry{rows: rows, queried: time.Now()}
	v.mu.Unlock()

	return rows, nil
}

// Reset drops every memoized query result. The persisted store is not
// cleared.
func (v *LatestView) Reset() {
	v.mu.Lock()
	v.results = make(map[string]latestEntry)
	v.mu.Unlock()
}
