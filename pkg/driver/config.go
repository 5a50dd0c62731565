package driver

import (
	"strconv"
	"time"

	"github.com/trackmate/trackmate/pkg/util"
)

type Config struct {
	URL   string
	Token string

	// PublishInterval should match the server's minimum publish interval so
	// the drain pacing stays useful
	PublishInterval time.Duration

	MaxRetries     int
	BufferCapacity int
}

func GetConfig() Config {
	config := Config{
		URL: "ws://localhost:8338/ws",

		PublishInterval: 1000 * time.Millisecond,

		MaxRetries:     3,
		BufferCapacity: DefaultBufferCapacity,
	}

	env := util.GetEnvironmentVariables()

	if env["TRACKMATE_GATEWAY_URL"] != "" {
		config.URL = env["TRACKMATE_GATEWAY_URL"]
	}
	if env["TRACKMATE_DRIVER_TOKEN"] != "" {
		config.Token = env["TRACKMATE_DRIVER_TOKEN"]
	}
	if env["TRACKMATE_MIN_PUBLISH_INTERVAL"] != "" {
		if interval, err := time.ParseDuration(env["TRACKMATE_MIN_PUBLISH_INTERVAL"]); err == nil {
			config.PublishInterval = interval
		}
	}
	if env["TRACKMATE_DRIVER_BUFFER_CAPACITY"] != "" {
		if capacity, err := strconv.Atoi(env["TRACKMATE_DRIVER_BUFFER_CAPACITY"]); err == nil {
			config.BufferCapacity = capacity
		}
	}

	return config
}
