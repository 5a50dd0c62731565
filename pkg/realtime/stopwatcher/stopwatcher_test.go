package stopwatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

// Stops roughly 500 metres apart going north
func testTrip() *tmdf.Trip {
	return &tmdf.Trip{
		PrimaryIdentifier: "trackmate-trip-1",
		Status:            tmdf.TripStatusActive,
		CurrentStopIndex:  -1,
		Stops: []tmdf.RouteStop{
			{Sequence: 0, PrimaryName: "Main Gate", Location: tmdf.NewLocation(51.5000, -0.1000)},
			{Sequence: 1, PrimaryName: "Library", Location: tmdf.NewLocation(51.5045, -0.1000)},
			{Sequence: 2, PrimaryName: "Hostel Block", Location: tmdf.NewLocation(51.5090, -0.1000)},
		},
	}
}

func sampleAt(lat float64, lon float64) *tmdf.PositionSample {
	return &tmdf.PositionSample{
		DriverID:  "driver-1",
		TripID:    "trackmate-trip-1",
		Latitude:  lat,
		Longitude: lon,
		Timestamp: time.Now(),
	}
}

func TestArrivalAtFirstStop(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	events := progress.Update(sampleAt(51.5000, -0.1000))

	require.Len(t, events, 1)
	assert.Equal(t, tmdf.StopEventStatusArrived, events[0].Status)
	assert.Equal(t, 0, events[0].StopIndex)
	assert.Equal(t, "Main Gate", events[0].StopName)
	assert.Equal(t, 0, progress.CurrentStopIndex)
}

func TestNoSkippingAhead(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	// Standing on the second stop without having reached the first one
	events := progress.Update(sampleAt(51.5045, -0.1000))

	assert.Empty(t, events)
	assert.Equal(t, -1, progress.CurrentStopIndex)
	assert.Equal(t, StopStatusNotReached, progress.StopStatus(1))
}

func TestHysteresisBetweenRadii(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	events := progress.Update(sampleAt(51.5000, -0.1000))
	require.Len(t, events, 1)

	// ~67 metres north: outside the arrival radius but inside the departure
	// radius, so no departure yet
	events = progress.Update(sampleAt(51.5006, -0.1000))
	assert.Empty(t, events)
	assert.Equal(t, StopStatusArrived, progress.StopStatus(0))

	// ~133 metres north: past the departure radius
	events = progress.Update(sampleAt(51.5012, -0.1000))
	require.Len(t, events, 1)
	assert.Equal(t, tmdf.StopEventStatusLeft, events[0].Status)
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(0))
}

func TestOneArrivedOneLeftPerStop(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	// Drive the full route in small steps, including jitter back towards
	// stops already departed
	path := []float64{
		51.5000, 51.5006, 51.5012, 51.5011, 51.5020, 51.5030,
		51.5045, 51.5050, 51.5060, 51.5059, 51.5075, 51.5090,
	}

	var arrived []int
	var left []int
	for _, lat := range path {
		for _, event := range progress.Update(sampleAt(lat, -0.1000)) {
			if event.Status == tmdf.StopEventStatusArrived {
				arrived = append(arrived, event.StopIndex)
			} else {
				left = append(left, event.StopIndex)
			}
		}
	}

	assert.Equal(t, []int{0, 1, 2}, arrived)
	assert.Equal(t, []int{0, 1}, left)
}

func TestRepeatedSamplesAtStopEmitOnce(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	events := progress.Update(sampleAt(51.5000, -0.1000))
	require.Len(t, events, 1)

	for i := 0; i < 5; i++ {
		assert.Empty(t, progress.Update(sampleAt(51.5000, -0.1000)))
	}
}

func TestForcedSampleTeleports(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	sample := sampleAt(51.5090, -0.1000)
	sample.Force = true

	events := progress.Update(sample)

	require.Len(t, events, 1)
	assert.Equal(t, tmdf.StopEventStatusArrived, events[0].Status)
	assert.Equal(t, 2, events[0].StopIndex)
	assert.Equal(t, 2, progress.CurrentStopIndex)
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(0))
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(1))
}

func TestForcedSampleBetweenStops(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	// ~250m past the second stop, nowhere near any arrival radius
	sample := sampleAt(51.5067, -0.1000)
	sample.Force = true

	events := progress.Update(sample)

	assert.Empty(t, events)
	assert.Equal(t, 1, progress.CurrentStopIndex)
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(1))
	assert.Equal(t, StopStatusNotReached, progress.StopStatus(2))
}

func TestForcedSampleShortOfNextStop(t *testing.T) {
	progress := NewTripProgress(testTrip(), DefaultConfig())

	// ~67m before the second stop: just outside its arrival radius, but the
	// stop is still ahead so it must stay reachable
	sample := sampleAt(51.5039, -0.1000)
	sample.Force = true

	events := progress.Update(sample)

	assert.Empty(t, events)
	assert.Equal(t, 0, progress.CurrentStopIndex)
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(0))
	assert.Equal(t, StopStatusNotReached, progress.StopStatus(1))

	// The bus then rolls into the stop normally and the arrival still fires
	events = progress.Update(sampleAt(51.5045, -0.1000))
	require.Len(t, events, 1)
	assert.Equal(t, tmdf.StopEventStatusArrived, events[0].Status)
	assert.Equal(t, 1, events[0].StopIndex)
}

func TestResumedTripSkipsEarlierStops(t *testing.T) {
	trip := testTrip()
	trip.CurrentStopIndex = 1

	progress := NewTripProgress(trip, DefaultConfig())

	assert.Equal(t, StopStatusDeparted, progress.StopStatus(0))
	assert.Equal(t, StopStatusDeparted, progress.StopStatus(1))

	remaining := progress.RemainingStops()
	require.Len(t, remaining, 1)
	assert.Equal(t, 2, remaining[0].Sequence)
}

func TestEmptyRoute(t *testing.T) {
	trip := testTrip()
	trip.Stops = nil

	progress := NewTripProgress(trip, DefaultConfig())

	assert.Empty(t, progress.Update(sampleAt(51.5, -0.1)))
}
