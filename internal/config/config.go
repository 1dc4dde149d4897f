package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	// ProcessedCSVPath is the dataset the serving path reads; the refresh
	// pipeline rewrites it.
	ProcessedCSVPath string

	// HistoricalCSVPath accumulates every fetched record across refreshes,
	// deduplicated by (station, hour).
	HistoricalCSVPath string

	// ModelDir holds the trained regressor dump.
	ModelDir string

	// RefreshToken, when set, gates POST /refresh. Empty disables the check.
	RefreshToken string

	// CPCBAPIKey authenticates against the data.gov.in CPCB resource.
	CPCBAPIKey string

	// GeocoderAPIKey enables coordinate backfill for stations without
	// lat/lon. Empty disables augmentation.
	GeocoderAPIKey string

	// IngestSource picks the upstream: "cpcb" or "openaq".
	IngestSource string

	// FetchLimit is the default number of rows requested per refresh.
	FetchLimit int

	// RefreshInterval controls the periodic refresh job; 0 disables it.
	RefreshInterval time.Duration

	// HTTPTimeout applies to outbound upstream calls.
	HTTPTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.ProcessedCSVPath = getenvDefault("PROCESSED_CSV",
		filepath.Join("data", "processed", "india_realtime_api.csv"))
	cfg.HistoricalCSVPath = getenvDefault("HISTORICAL_CSV",
		filepath.Join("data", "historical", "india_hourly_raw.csv"))
	cfg.ModelDir = getenvDefault("MODEL_DIR", "models")

	cfg.RefreshToken = os.Getenv("REFRESH_TOKEN")
	cfg.CPCBAPIKey = os.Getenv("CPCB_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.IngestSource = getenvDefault("INGEST_SOURCE", "cpcb")
	cfg.FetchLimit = getenvInt("FETCH_LIMIT", 1000)

	// Periodic refresh is off by default; ingestion stays on-demand.
	intervalStr := getenvDefault("REFRESH_INTERVAL", "0")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
