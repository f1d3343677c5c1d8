package weather

import (
	"errors"
	"fmt"
	"time"
)

// Observation is one normalized weather measurement for one city at one
// instant. City always holds the canonical form (see Canonicalize), and
// Timestamp is the collector's own UTC clock, not the provider's.
type Observation struct {
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"` // always UTC
	Temp      float64   `json:"temp"`
	Humidity  float64   `json:"humidity"`
	FeelsLike float64   `json:"feels_like"`

	// Presentation extras passed through from the provider. Not persisted.
	WindSpeed   float64 `json:"wind_speed,omitempty"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
}

// CityRequest pairs a user-entered city name with its canonical form used
// for fetching, storage and query.
type CityRequest struct {
	City      string `json:"city"`
	Canonical string `json:"canonical"`
}

var (
	// ErrNotFound means the provider does not know the requested city.
	ErrNotFound = errors.New("city not found")

	// ErrUnauthorized means the provider rejected the API key.
	ErrUnauthorized = errors.New("provider rejected api key")

	// ErrMissingAPIKey means no API key is configured at all; no network
	// I/O is attempted in this state.
	ErrMissingAPIKey = errors.New("api key is not configured")
)

// TransportError covers connection failures, timeouts and unexpected
// provider status codes (anything that is not 200/401/404).
type TransportError struct {
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("transport error: %s", e.Detail)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedError means the provider answered 200 but the payload is
// missing required fields.
type MalformedError struct {
	Detail string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed provider response: %s", e.Detail)
}
