package httpapi

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/simple-weather/simple-weather/internal/store"
	"github.com/simple-weather/simple-weather/internal/weather"
)

var validate = validator.New()

// Service bundles the read and write paths the HTTP layer serves.
type Service struct {
	Collector *weather.Collector
	View      *weather.LatestView
	Store     *store.SQLiteStore
	Cache     *weather.CachedFetcher
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *Service) {
	v1 := app.Group("/api/v1")

	// Latest observation per city within the freshness window. An empty
	// list means no selected city was observed in the last hour.
	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		req, err := parseCitiesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := svc.View.Latest(c.Context(), req.cities)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query latest weather")
		}

		out := make([]latestRow, 0, len(rows))
		for _, obs := range rows {
			out = append(out, latestRow{
				Observation:    obs,
				Recommendation: RecommendActivity(obs.Description),
			})
		}
		return c.JSON(fiber.Map{"cities": out})
	})

	// Trigger one collection tick for the given cities. Side effects are
	// visible only through the store; per-city failures are diagnostics.
	v1.Post("/weather/collect", func(c *fiber.Ctx) error {
		req, err := parseCitiesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := svc.Collector.Collect(c.Context(), req.cities); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "collection failed")
		}
		// Memoized latest results predate the rows just written.
		svc.View.Reset()
		return c.SendStatus(fiber.StatusAccepted)
	})

	// Truncate the in-process memo caches. The persisted store is kept.
	v1.Post("/cache/reset", func(c *fiber.Ctx) error {
		svc.Cache.Reset()
		svc.View.Reset()
		return c.JSON(fiber.Map{"status": "reset"})
	})

	// CSV export of collected history, newest-window first by city.
	v1.Get("/weather/history.csv", func(c *fiber.Ctx) error {
		req, err := parseCitiesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		window, err := parseWindow(c, 24*time.Hour)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		canonical := canonicalNames(req.cities)
		rows, err := svc.Store.History(c.Context(), canonical, window)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query history")
		}

		var sb strings.Builder
		w := csv.NewWriter(&sb)
		_ = w.Write([]string{"city", "timestamp", "temp", "humidity", "feels_like"})
		for _, obs := range rows {
			_ = w.Write([]string{
				obs.City,
				obs.Timestamp.Format(time.RFC3339),
				strconv.FormatFloat(obs.Temp, 'f', 2, 64),
				strconv.FormatFloat(obs.Humidity, 'f', 2, 64),
				strconv.FormatFloat(obs.FeelsLike, 'f', 2, 64),
			})
		}
		w.Flush()

		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="weather_history.csv"`)
		return c.SendString(sb.String())
	})

	// Descriptive statistics for one city over a window.
	v1.Get("/weather/stats", func(c *fiber.Ctx) error {
		var q statsQuery
		q.City = c.Query("city")
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		window, err := parseWindow(c, 24*time.Hour)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := svc.Store.Stats(c.Context(), weather.Canonicalize(q.City), window)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query stats")
		}
		if stats.Count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no observations for requested city")
		}
		return c.JSON(stats)
	})
}

type latestRow struct {
	weather.Observation
	Recommendation string `json:"recommendation,omitempty"`
}

// citiesQuery holds the comma-separated city selection.
type citiesQuery struct {
	Cities string `validate:"required"`

	cities []string
}

type statsQuery struct {
	City string `validate:"required"`
}

func parseCitiesQuery(c *fiber.Ctx) (citiesQuery, error) {
	var q citiesQuery
	q.Cities = c.Query("cities")
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	for _, part := range strings.Split(q.Cities, ",") {
		if part = strings.TrimSpace(part); part != "" {
			q.cities = append(q.cities, part)
		}
	}
	if len(q.cities) == 0 {
		return q, fmt.Errorf("cities query parameter must name at least one city")
	}
	return q, nil
}

func parseWindow(c *fiber.Ctx, def time.Duration) (time.Duration, error) {
	v := c.Query("window")
	if v == "" {
		return def, nil
	}
	window, err := time.ParseDuration(v)
	if err != nil || window < 0 {
		return 0, fmt.Errorf("invalid window; use a duration like 24h")
	}
	return window, nil
}

func canonicalNames(cities []string) []string {
	reqs := weather.CanonicalizeAll(cities)
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Canonical
	}
	return out
}
