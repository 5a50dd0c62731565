package eta

import (
	"time"

	"github.com/trackmate/trackmate/pkg/tmdf"
)

type Config struct {
	// AverageSpeed substitutes for a missing or implausible reported speed,
	// in metres per second
	AverageSpeed float64

	// FallbackSpeed is the assumed speed for the straight-line heuristic
	FallbackSpeed float64

	// FreshnessWindow is how long a server estimate stays authoritative
	// before consumers switch to the fallback heuristic
	FreshnessWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		AverageSpeed:    8,
		FallbackSpeed:   5,
		FreshnessWindow: 10 * time.Second,
	}
}

const minPlausibleSpeed = 0.5

type Estimator struct {
	config Config
}

func NewEstimator(config Config) *Estimator {
	return &Estimator{config: config}
}

// Estimate computes time-to-arrival for every remaining stop by walking the
// route geometry from the current position: distance to the first remaining
// stop, then stop to stop. Estimates are never negative and stops already
// arrived at or departed from are excluded.
func (e *Estimator) Estimate(tripID string, position *tmdf.Location, speed float64, remaining []tmdf.RouteStop) *tmdf.ETASet {
	set := &tmdf.ETASet{
		TripID:     tripID,
		ETAs:       map[int]int64{},
		Source:     tmdf.ETASourceServer,
		ComputedAt: time.Now(),
	}

	if len(remaining) == 0 {
		return set
	}

	if speed < minPlausibleSpeed {
		speed = e.config.AverageSpeed
	}

	distance := position.Distance(remaining[0].Location)

	for i, stop := range remaining {
		if i > 0 {
			distance += remaining[i-1].Location.Distance(stop.Location)
		}

		etaMs := int64(distance / speed * 1000)
		if etaMs < 0 {
			etaMs = 0
		}

		set.ETAs[stop.Sequence] = etaMs
		set.List = append(set.List, tmdf.StopETA{
			StopID: stop.PrimaryName,
			ETAMs:  etaMs,
		})
	}

	return set
}

// FallbackETA is the straight-line heuristic used when no fresh server
// estimate exists: great-circle distance over an assumed speed. Shared with
// consumers so client and server agree on the degraded behaviour.
func FallbackETA(bus *tmdf.Location, stop *tmdf.Location, speed float64, config Config) int64 {
	if bus == nil || stop == nil {
		return 0
	}

	if speed < minPlausibleSpeed {
		speed = config.FallbackSpeed
	}

	etaMs := int64(bus.Distance(stop) / speed * 1000)
	if etaMs < 0 {
		etaMs = 0
	}

	return etaMs
}

// Fresh reports whether a server-computed set is still inside the freshness
// window at the given time.
func Fresh(set *tmdf.ETASet, now time.Time, config Config) bool {
	if set == nil {
		return false
	}

	return now.Sub(set.ComputedAt) < config.FreshnessWindow
}
