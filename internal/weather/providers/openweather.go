package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/simple-weather/simple-weather/internal/weather"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 15 * time.Second

var errServerError = errors.New("server error")

// OpenWeatherClient implements weather.Fetcher against the OpenWeatherMap
// current-weather endpoint. Requests pass a client-side rate limiter and a
// circuit breaker; there are no retries here, the next collection tick is
// the retry.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(client *http.Client, apiKey string) *OpenWeatherClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenWeatherClient{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		circuit: cb,
	}
}

func (c *OpenWeatherClient) Name() string { return c.name }

func (c *OpenWeatherClient) Configured() bool { return c.apiKey != "" }

func (c *OpenWeatherClient) Fetch(ctx context.Context, canonicalCity string) (weather.Observation, error) {
	if c.apiKey == "" {
		return weather.Observation{}, weather.ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return weather.Observation{}, &weather.TransportError{Detail: "rate limit wait canceled", Err: err}
	}

	values := url.Values{}
	values.Set("q", canonicalCity)
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")
	values.Set("lang", "kr")

	u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return weather.Observation{}, &weather.TransportError{Detail: "build request", Err: err}
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		// 5xx counts as a provider failure so the breaker can trip.
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return weather.Observation{}, &weather.TransportError{Detail: "circuit breaker open", Err: err}
		}
		return weather.Observation{}, &weather.TransportError{Detail: "request failed", Err: err}
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		return weather.Observation{}, weather.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return weather.Observation{}, weather.ErrNotFound
	default:
		return weather.Observation{}, &weather.TransportError{
			Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload struct {
		Name string `json:"name"`
		Dt   int64  `json:"dt"`
		Main struct {
			Temp      *float64 `json:"temp"`
			Humidity  *float64 `json:"humidity"`
			FeelsLike *float64 `json:"feels_like"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, &weather.MalformedError{Detail: fmt.Sprintf("decode body: %v", err)}
	}

	if payload.Name == "" || payload.Main.Temp == nil || payload.Main.Humidity == nil || payload.Main.FeelsLike == nil {
		return weather.Observation{}, &weather.MalformedError{Detail: "missing required fields"}
	}

	obs := weather.Observation{
		// Storage keys on the ingress-canonical name, not the provider's
		// payload.Name, so that latest-per-city lookups match user input.
		City:      canonicalCity,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Temp:      *payload.Main.Temp,
		Humidity:  *payload.Main.Humidity,
		FeelsLike: *payload.Main.FeelsLike,
		WindSpeed: payload.Wind.Speed,
	}
	if len(payload.Weather) > 0 {
		obs.Description = payload.Weather[0].Description
		obs.Icon = payload.Weather[0].Icon
	}

	return obs, nil
}

var _ weather.Fetcher = (*OpenWeatherClient)(nil)
