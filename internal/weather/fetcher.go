package weather

import (
	"context"
	"time"
)

// Fetcher abstracts a single-city call to the external weather provider.
// Failures never cross this boundary as panics; they are values from the
// taxonomy in models.go (ErrNotFound, ErrUnauthorized, ErrMissingAPIKey,
// *TransportError, *MalformedError).
type Fetcher interface {
	Name() string
	// Configured reports whether an API key is available. When false,
	// Fetch must return ErrMissingAPIKey without any network I/O.
	Configured() bool
	Fetch(ctx context.Context, canonicalCity string) (Observation, error)
}

// Recorder is the write half of the store contract the Collector needs.
type Recorder interface {
	InsertBatch(ctx context.Context, records []Observation) error
}

// LatestSource is the read half used by the LatestView: at most one row
// per requested city, none older than the window, ascending by city.
type LatestSource interface {
	LatestWithin(ctx context.Context, cities []string, window time.Duration) ([]Observation, error)
}
