package weather

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Collector drives the Fetcher over a set of cities on each tick and
// persists the successes as one atomic batch. Per-city failures are
// logged and skipped; only a store write failure propagates.
type Collector struct {
	fetcher Fetcher
	store   Recorder

	// written tracks the last persisted timestamp per city, so an
	// observation served from the fetch cache on a later tick is not
	// inserted a second time.
	mu      sync.Mutex
	written map[string]time.Time
}

func NewCollector(fetcher Fetcher, store Recorder) *Collector {
	return &Collector{
		fetcher: fetcher,
		store:   store,
		written: make(map[string]time.Time),
	}
}

// Collect canonicalizes and deduplicates the selected cities, fetches
// each one concurrently, and hands all successful observations to the
// store in a single batch. With no API key configured it warns and does
// nothing. The effect of a tick is visible only through the store.
func (c *Collector) Collect(ctx context.Context, cities []string) error {
	tick := uuid.NewString()[:8]

	requests := CanonicalizeAll(cities)
	if len(requests) == 0 {
		log.Printf("collector[%s]: no cities selected; skipping tick", tick)
		return nil
	}

	if !c.fetcher.Configured() {
		log.Printf("collector[%s]: WARN: %v; skipping collection", tick, ErrMissingAPIKey)
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		records []Observation
	)

	for _, req := range requests {
		req := req
		wg.Add(1)
		go func() {
			defer wg.Done()

			obs, err := c.fetcher.Fetch(ctx, req.Canonical)
			if err != nil {
				// Partial failure: skip this city, the rest proceed.
				log.Printf("collector[%s]: fetch failed for %s: %v", tick, req.Canonical, err)
				return
			}

			mu.Lock()
			records = append(records, obs)
			mu.Unlock()
		}()
	}

	wg.Wait()

	// Drop observations already persisted by an earlier tick: a fetch
	// served from the memo cache carries the timestamp it was stored
	// under, and (city, timestamp) pairs must stay unique.
	c.mu.Lock()
	fresh := records[:0]
	for _, obs := range records {
		if last, ok := c.written[obs.City]; ok && !obs.Timestamp.After(last) {
			continue
		}
		fresh = append(fresh, obs)
	}
	c.mu.Unlock()

	if len(fresh) == 0 {
		log.Printf("collector[%s]: nothing new to write for %d cities", tick, len(requests))
		return nil
	}

	if err := c.store.InsertBatch(ctx, fresh); err != nil {
		return err
	}

	c.mu.Lock()
	for _, obs := range fresh {
		c.written[obs.City] = obs.Timestamp
	}
	c.mu.Unlock()

	log.Printf("collector[%s]: wrote %d/%d observations", tick, len(fresh), len(requests))
	return nil
}
