package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/simple-weather/simple-weather/internal/weather"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "weather.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func obs(city string, ts time.Time, temp float64) weather.Observation {
	return weather.Observation{
		City:      city,
		Timestamp: ts,
		Temp:      temp,
		Humidity:  60,
		FeelsLike: temp - 1.5,
	}
}

func TestInitIdempotent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.InsertBatch(context.Background(), []weather.Observation{obs("Seoul", now, 3.1)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	// A second Init must leave schema and data intact.
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected data to survive re-init, got %d rows", len(rows))
	}
}

func TestInsertQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	in := obs("Seoul", now, -4.2)

	if err := s.InsertBatch(context.Background(), []weather.Observation{in}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.City != in.City || !got.Timestamp.Equal(in.Timestamp) ||
		got.Temp != in.Temp || got.Humidity != in.Humidity || got.FeelsLike != in.FeelsLike {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, in)
	}
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}

func TestInsertBatchDedupesLastWins(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	batch := []weather.Observation{
		obs("Seoul", now, 1.0),
		obs("Seoul", now, 2.0), // same (city, timestamp): last wins
	}
	if err := s.InsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.History(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("duplicate (city, timestamp) must collapse to one row, got %d", len(rows))
	}
	if rows[0].Temp != 2.0 {
		t.Fatalf("last element must win, got temp %v", rows[0].Temp)
	}
}

func TestLatestWithinOrderingAndCompleteness(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	batch := []weather.Observation{
		obs("Seoul", now, 3.1),
		obs("Busan", now, 8.4),
		obs("Jeju", now, 12.0),
	}
	if err := s.InsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul", "Busan", "Jeju"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	wantOrder := []string{"Busan", "Jeju", "Seoul"}
	wantTemp := map[string]float64{"Seoul": 3.1, "Busan": 8.4, "Jeju": 12.0}
	for i, row := range rows {
		if row.City != wantOrder[i] {
			t.Errorf("row %d city = %q, want %q (ascending by city)", i, row.City, wantOrder[i])
		}
		if row.Temp != wantTemp[row.City] {
			t.Errorf("%s temp = %v, want %v", row.City, row.Temp, wantTemp[row.City])
		}
	}
}

func TestLatestWithinPicksNewestPerCity(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	older := obs("Seoul", now.Add(-10*time.Minute), 1.0)
	newer := obs("Seoul", now, 2.0)
	if err := s.InsertBatch(context.Background(), []weather.Observation{older, newer}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Temp != 2.0 {
		t.Fatalf("expected newest row (temp 2.0), got %v", rows)
	}
}

func TestLatestWithinIDTieBreak(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Same (city, timestamp) across two batches: both rows exist, the
	// greater id must win the tie.
	if err := s.InsertBatch(context.Background(), []weather.Observation{obs("Seoul", now, 1.0)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if err := s.InsertBatch(context.Background(), []weather.Observation{obs("Seoul", now, 2.0)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Temp != 2.0 {
		t.Fatalf("tie-break must favor the greater id, got temp %v", rows[0].Temp)
	}
}

func TestLatestWithinFiltersStaleRows(t *testing.T) {
	s := newTestStore(t)
	stale := obs("Seoul", time.Now().UTC().Add(-2*time.Hour), 1.0)

	if err := s.InsertBatch(context.Background(), []weather.Observation{stale}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("row older than the window must not be returned, got %v", rows)
	}
}

func TestLatestWithinZeroWindow(t *testing.T) {
	s := newTestStore(t)
	recent := obs("Seoul", time.Now().UTC().Add(-time.Minute), 1.0)

	if err := s.InsertBatch(context.Background(), []weather.Observation{recent}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, 0)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("zero window should exclude past rows, got %v", rows)
	}
}

func TestLatestWithinEmptyCities(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.LatestWithin(context.Background(), nil, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty result for empty selection, got %v", rows)
	}
}

func TestLatestWithinColdStore(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.LatestWithin(context.Background(), []string{"Seoul"}, time.Hour)
	if err != nil {
		t.Fatalf("cold store query must not error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows on cold store, got %v", rows)
	}
}

func TestLatestWithinAbsentCityOmitted(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.InsertBatch(context.Background(), []weather.Observation{obs("Seoul", now, 3.1)}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.LatestWithin(context.Background(), []string{"Seoul", "Busan", "Atlantis"}, time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 1 || rows[0].City != "Seoul" {
		t.Fatalf("cities with no rows must simply be absent, got %v", rows)
	}
}

func TestRestartDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weather.db")
	now := time.Now().UTC().Truncate(time.Second)

	first := NewSQLiteStore(path)
	if err := first.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	batch := []weather.Observation{
		obs("Seoul", now, 3.1),
		obs("Busan", now, 8.4),
	}
	if err := first.InsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	// Simulates a process restart: a fresh store over the same file.
	second := NewSQLiteStore(path)
	if err := second.Init(context.Background()); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}

	rows, err := second.LatestWithin(context.Background(), []string{"Seoul", "Busan"}, 24*time.Hour)
	if err != nil {
		t.Fatalf("LatestWithin failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected both observations to survive restart, got %d", len(rows))
	}
}

func TestHistoryOrdering(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	batch := []weather.Observation{
		obs("Seoul", now, 3.0),
		obs("Seoul", now.Add(-30*time.Minute), 2.0),
		obs("Busan", now, 8.0),
	}
	if err := s.InsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	rows, err := s.History(context.Background(), []string{"Seoul", "Busan"}, time.Hour)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// Busan first (city ascending), then Seoul rows timestamp ascending.
	if rows[0].City != "Busan" || rows[1].Temp != 2.0 || rows[2].Temp != 3.0 {
		t.Fatalf("unexpected history ordering: %v", rows)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	batch := []weather.Observation{
		obs("Seoul", now.Add(-2*time.Minute), 2.0),
		obs("Seoul", now.Add(-1*time.Minute), 4.0),
		obs("Seoul", now, 6.0),
	}
	if err := s.InsertBatch(context.Background(), batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	stats, err := s.Stats(context.Background(), "Seoul", time.Hour)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 3 {
		t.Fatalf("count = %d, want 3", stats.Count)
	}
	if stats.TempMin != 2.0 || stats.TempMax != 6.0 || stats.TempMean != 4.0 {
		t.Fatalf("temp stats = %+v, want min 2 max 6 mean 4", stats)
	}
}

func TestStatsNoRows(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Stats(context.Background(), "Atlantis", time.Hour)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("count = %d, want 0", stats.Count)
	}
}

func TestParseTimeAcceptsLegacyFormat(t *testing.T) {
	// Earlier deployments wrote fractional seconds with a +00:00 offset.
	legacy := "2024-01-15T09:30:00.123456+00:00"
	got, err := parseTime(legacy)
	if err != nil {
		t.Fatalf("parseTime(%q) failed: %v", legacy, err)
	}
	want := time.Date(2024, 1, 15, 9, 30, 0, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parseTime(%q) = %v, want %v", legacy, got, want)
	}
}
