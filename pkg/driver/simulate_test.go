package driver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRouteYAML = `
name: campus-loop
trip: trackmate-trip-sim
bus: bus-sim
driver: driver-sim
speed: 10
interval: 1s
stops:
  - name: Main Gate
    lat: 51.5000
    lng: -0.1000
  - name: Library
    lat: 51.5045
    lng: -0.1000
    dwell: 3s
  - name: Hostel Block
    lat: 51.5090
    lng: -0.1000
`

func writeTestRoute(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "route.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRouteYAML), 0644))
	return path
}

func TestLoadSimulatedRoute(t *testing.T) {
	route, err := LoadSimulatedRoute(writeTestRoute(t))
	require.NoError(t, err)

	assert.Equal(t, "campus-loop", route.Name)
	assert.Equal(t, "trackmate-trip-sim", route.TripID)
	assert.Equal(t, float64(10), route.Speed)
	assert.Equal(t, 1*time.Second, time.Duration(route.Interval))
	require.Len(t, route.Stops, 3)
	assert.Equal(t, 3*time.Second, time.Duration(route.Stops[1].Dwell))
}

func TestSamplesVisitEveryStop(t *testing.T) {
	route, err := LoadSimulatedRoute(writeTestRoute(t))
	require.NoError(t, err)

	samples := route.Samples()
	require.NotEmpty(t, samples)

	// First and last samples sit exactly on the terminal stops
	assert.Equal(t, 51.5000, samples[0].Latitude)
	assert.Equal(t, 51.5090, samples[len(samples)-1].Latitude)

	// ~500m per leg at 10 m/s and 1s interval means a sample roughly every
	// 50 metres; two legs plus the dwell should produce around a hundred
	assert.Greater(t, len(samples), 50)

	for _, sample := range samples {
		assert.Equal(t, "trackmate-trip-sim", sample.TripID)
		assert.Equal(t, "driver-sim", sample.DriverID)
	}

	// Timestamps advance monotonically by the interval
	for i := 1; i < len(samples); i++ {
		assert.Equal(t, time.Duration(route.Interval), samples[i].Timestamp.Sub(samples[i-1].Timestamp))
	}
}
