package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/simple-weather/simple-weather/internal/store"
)

// CollectionInterval is the default collection cadence and the TTL of the
// fetch and latest-view memo caches.
const CollectionInterval = 600 * time.Second

// DefaultCities is the selection used when none is configured.
var DefaultCities = []string{"Seoul", "Busan", "Jeju"}

type AppConfig struct {
	// APIKey for the weather provider. Empty is not an error: collection
	// degrades to a warned no-op without network I/O.
	APIKey string

	// Cities to collect on every tick.
	Cities []string

	// Interval between collection ticks; also the memo cache TTL.
	Interval time.Duration

	// DBPath locates the SQLite observation file.
	DBPath string

	Port string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	cfg.APIKey = loadAPIKey()

	cfg.Cities = DefaultCities
	if v := os.Getenv("WEATHER_CITIES"); v != "" {
		cfg.Cities = splitCities(v)
	}

	intervalStr := getenvDefault("COLLECTION_INTERVAL", "600s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECTION_INTERVAL: %w", err)
	}
	cfg.Interval = interval

	cfg.DBPath = getenvDefault("WEATHER_DB_PATH", store.DefaultPath)
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// loadAPIKey resolves the provider key: a platform secret file first,
// then the environment. Absence is reported by an empty string, not an
// error, so callers branch explicitly instead of unwinding.
func loadAPIKey() string {
	if path := os.Getenv("OPENWEATHER_API_KEY_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("WARN: could not read api key file %s: %v", path, err)
		} else if key := strings.TrimSpace(string(data)); key != "" {
			return key
		}
	}
	return os.Getenv("OPENWEATHER_API_KEY")
}

func splitCities(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
