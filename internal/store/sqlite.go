package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/simple-weather/simple-weather/internal/weather"
)

// DefaultPath is where the observation database lives unless configured
// otherwise.
const DefaultPath = "data/simple_weather.db"

const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    city TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    temp REAL,
    humidity REAL,
    feels_like REAL
);
CREATE INDEX IF NOT EXISTS idx_weather_city_time ON weather_records(city, timestamp);
`

// SQLiteStore is an append-only store of weather observations in a local
// SQLite file. The connection is scoped to each call rather than held
// across ticks, so a crashed process never leaves the file locked and the
// storage engine's own transaction serializes concurrent writers.
type SQLiteStore struct {
	path string
}

func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = DefaultPath
	}
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	return db, nil
}

// Init creates the data directory, the weather_records table and its
// index if they do not exist. It is idempotent and safe to call on a file
// written by an earlier deployment; existing rows are kept as-is.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertBatch writes all records in one transaction: they all land or
// none do. An empty batch is a no-op. Duplicate (city, timestamp) pairs
// within the batch are collapsed keeping the last element for the pair.
func (s *SQLiteStore) InsertBatch(ctx context.Context, records []weather.Observation) error {
	if len(records) == 0 {
		return nil
	}

	// Last-wins dedupe on (city, timestamp) before the write.
	type key struct {
		city string
		ts   string
	}
	index := make(map[key]int, len(records))
	deduped := make([]weather.Observation, 0, len(records))
	for _, rec := range records {
		k := key{city: rec.City, ts: formatTime(rec.Timestamp)}
		if i, ok := index[k]; ok {
			deduped[i] = rec
			continue
		}
		index[k] = len(deduped)
		deduped = append(deduped, rec)
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO weather_records (city, timestamp, temp, humidity, feels_like) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range deduped {
		if _, err := stmt.ExecContext(ctx, rec.City, formatTime(rec.Timestamp), rec.Temp, rec.Humidity, rec.FeelsLike); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", rec.City, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// LatestWithin returns at most one row per requested city whose timestamp
// is no older than the window, ascending by city name. A city with no
// qualifying row is simply absent. When two rows share a city's maximal
// timestamp, the greater id wins.
func (s *SQLiteStore) LatestWithin(ctx context.Context, cities []string, window time.Duration) ([]weather.Observation, error) {
	if len(cities) == 0 {
		return nil, nil
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cutoff := formatTime(time.Now().UTC().Add(-window))

	query := fmt.Sprintf(`
        SELECT w1.city, w1.timestamp, w1.temp, w1.humidity, w1.feels_like
        FROM weather_records w1
        INNER JOIN (
            SELECT city, MAX(timestamp) AS max_timestamp
            FROM weather_records
            WHERE city IN (%s) AND timestamp >= ?
            GROUP BY city
        ) w2 ON w1.city = w2.city AND w1.timestamp = w2.max_timestamp
        WHERE w1.id = (
            SELECT MAX(w3.id) FROM weather_records w3
            WHERE w3.city = w1.city AND w3.timestamp = w1.timestamp
        )
        ORDER BY w1.city`, placeholders(len(cities)))

	args := make([]any, 0, len(cities)+1)
	for _, c := range cities {
		args = append(args, c)
	}
	args = append(args, cutoff)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// History returns every observation for the requested cities within the
// window, ordered by city then timestamp ascending. It backs the history
// table and CSV export of the presentation layer.
func (s *SQLiteStore) History(ctx context.Context, cities []string, window time.Duration) ([]weather.Observation, error) {
	if len(cities) == 0 {
		return nil, nil
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cutoff := formatTime(time.Now().UTC().Add(-window))

	query := fmt.Sprintf(`
        SELECT city, timestamp, temp, humidity, feels_like
        FROM weather_records
        WHERE city IN (%s) AND timestamp >= ?
        ORDER BY city, timestamp, id`, placeholders(len(cities)))

	args := make([]any, 0, len(cities)+1)
	for _, c := range cities {
		args = append(args, c)
	}
	args = append(args, cutoff)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// CityStats holds descriptive statistics over a city's observations
// within a window.
type CityStats struct {
	City         string  `json:"city"`
	Count        int     `json:"count"`
	TempMean     float64 `json:"temp_mean"`
	TempMin      float64 `json:"temp_min"`
	TempMax      float64 `json:"temp_max"`
	HumidityMean float64 `json:"humidity_mean"`
	HumidityMin  float64 `json:"humidity_min"`
	HumidityMax  float64 `json:"humidity_max"`
}

// Stats computes count/mean/min/max of temperature and humidity for one
// city within the window. Count zero means no qualifying rows.
func (s *SQLiteStore) Stats(ctx context.Context, city string, window time.Duration) (CityStats, error) {
	db, err := s.open()
	if err != nil {
		return CityStats{}, err
	}
	defer db.Close()

	cutoff := formatTime(time.Now().UTC().Add(-window))
	stats := CityStats{City: city}

	row := db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(AVG(temp), 0), COALESCE(MIN(temp), 0), COALESCE(MAX(temp), 0),
               COALESCE(AVG(humidity), 0), COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0)
        FROM weather_records
        WHERE city = ? AND timestamp >= ?`, city, cutoff)

	if err := row.Scan(&stats.Count,
		&stats.TempMean, &stats.TempMin, &stats.TempMax,
		&stats.HumidityMean, &stats.HumidityMin, &stats.HumidityMax); err != nil {
		return CityStats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func scanObservations(rows *sql.Rows) ([]weather.Observation, error) {
	var out []weather.Observation
	for rows.Next() {
		var obs weather.Observation
		var ts string
		if err := rows.Scan(&obs.City, &ts, &obs.Temp, &obs.Humidity, &obs.FeelsLike); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		parsed, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		obs.Timestamp = parsed
		out = append(out, obs)
	}
	return out, rows.Err()
}

// formatTime renders a UTC RFC3339 timestamp at second precision, the
// form the table's lexicographic comparisons rely on.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// parseTime accepts both our RFC3339 form and the fractional +00:00 form
// written by earlier deployments of the same database file.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999-07:00", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var (
	_ weather.Recorder     = (*SQLiteStore)(nil)
	_ weather.LatestSource = (*SQLiteStore)(nil)
)
