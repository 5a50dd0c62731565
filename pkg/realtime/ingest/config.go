package ingest

import (
	"os"
	"strconv"
	"time"

	"github.com/trackmate/trackmate/pkg/realtime/eta"
	"github.com/trackmate/trackmate/pkg/realtime/stopwatcher"
)

type Config struct {
	// MinPublishInterval bounds how often samples per trip are accepted;
	// forced samples bypass it
	MinPublishInterval time.Duration

	StopWatcher stopwatcher.Config
	ETA         eta.Config
}

func DefaultConfig() Config {
	return Config{
		MinPublishInterval: 1000 * time.Millisecond,

		StopWatcher: stopwatcher.DefaultConfig(),
		ETA:         eta.DefaultConfig(),
	}
}

// GetConfig returns the ingest configuration from environment variables or
// defaults
func GetConfig() Config {
	config := DefaultConfig()

	if val := os.Getenv("TRACKMATE_MIN_PUBLISH_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.MinPublishInterval = parsed
		}
	}

	if val := os.Getenv("TRACKMATE_ARRIVAL_RADIUS_METERS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.StopWatcher.ArrivalRadiusMetres = parsed
		}
	}

	if val := os.Getenv("TRACKMATE_DEPARTURE_RADIUS_METERS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.StopWatcher.DepartureRadiusMetres = parsed
		}
	}

	if val := os.Getenv("TRACKMATE_FALLBACK_SPEED"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.ETA.FallbackSpeed = parsed
		}
	}

	if val := os.Getenv("TRACKMATE_ETA_FRESHNESS_WINDOW"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			config.ETA.FreshnessWindow = parsed
		}
	}

	return config
}
