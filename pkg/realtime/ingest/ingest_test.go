package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

type fakeTripStore struct {
	trips map[string]*tmdf.Trip
}

func (s *fakeTripStore) GetActiveTrip(ctx context.Context, tripID string) (*tmdf.Trip, error) {
	trip, exists := s.trips[tripID]
	if !exists {
		return nil, nil
	}
	return trip, nil
}

type broadcastRecord struct {
	Kind  string
	Event tmdf.StopEvent
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	records []broadcastRecord
}

func (b *fakeBroadcaster) BroadcastLocation(tripID string, position tmdf.NormalizedPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, broadcastRecord{Kind: "location"})
}

func (b *fakeBroadcaster) BroadcastStopEvent(event tmdf.StopEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, broadcastRecord{Kind: "stop_event", Event: event})
}

func (b *fakeBroadcaster) BroadcastETASet(set *tmdf.ETASet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, broadcastRecord{Kind: "eta"})
}

func (b *fakeBroadcaster) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var kinds []string
	for _, record := range b.records {
		kinds = append(kinds, record.Kind)
	}
	return kinds
}

func activeTrip() *tmdf.Trip {
	return &tmdf.Trip{
		PrimaryIdentifier: "trackmate-trip-1",
		BusID:             "bus-1",
		DriverID:          "driver-1",
		Status:            tmdf.TripStatusActive,
		CurrentStopIndex:  -1,
		Stops: []tmdf.RouteStop{
			{Sequence: 0, PrimaryName: "Main Gate", Location: tmdf.NewLocation(51.5000, -0.1000)},
			{Sequence: 1, PrimaryName: "Library", Location: tmdf.NewLocation(51.5045, -0.1000)},
		},
	}
}

func testCoordinator(trips ...*tmdf.Trip) (*Coordinator, *fakeBroadcaster) {
	store := &fakeTripStore{trips: map[string]*tmdf.Trip{}}
	for _, trip := range trips {
		store.trips[trip.PrimaryIdentifier] = trip
	}

	broadcaster := &fakeBroadcaster{}
	coordinator := NewCoordinator(DefaultConfig(), store, broadcaster)

	return coordinator, broadcaster
}

func testSample() tmdf.PositionSample {
	return tmdf.PositionSample{
		DriverID:  "driver-1",
		TripID:    "trackmate-trip-1",
		BusID:     "bus-1",
		Latitude:  51.5020,
		Longitude: -0.1000,
		Speed:     8,
		Timestamp: time.Now(),
	}
}

func TestIngestAcceptsValidSample(t *testing.T) {
	coordinator, broadcaster := testCoordinator(activeTrip())

	err := coordinator.Ingest(context.Background(), "driver-1", testSample())

	require.NoError(t, err)
	assert.Equal(t, []string{"location", "eta"}, broadcaster.kinds())

	position, exists := coordinator.LastPosition("trackmate-trip-1")
	require.True(t, exists)
	assert.Equal(t, 51.5020, position.Latitude)
}

func TestIngestThrottlesWithinInterval(t *testing.T) {
	coordinator, _ := testCoordinator(activeTrip())

	clock := time.Now()
	coordinator.now = func() time.Time { return clock }

	accepted := 0
	throttled := 0

	// Five samples inside a 200ms window against a 1000ms interval
	for i := 0; i < 5; i++ {
		err := coordinator.Ingest(context.Background(), "driver-1", testSample())
		switch err {
		case nil:
			accepted++
		case ErrThrottled:
			throttled++
		default:
			t.Fatalf("unexpected error: %v", err)
		}

		clock = clock.Add(50 * time.Millisecond)
	}

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 4, throttled)
}

func TestIngestAcceptsAfterInterval(t *testing.T) {
	coordinator, _ := testCoordinator(activeTrip())

	clock := time.Now()
	coordinator.now = func() time.Time { return clock }

	require.NoError(t, coordinator.Ingest(context.Background(), "driver-1", testSample()))

	clock = clock.Add(1001 * time.Millisecond)
	assert.NoError(t, coordinator.Ingest(context.Background(), "driver-1", testSample()))
}

func TestForceBypassesThrottle(t *testing.T) {
	coordinator, _ := testCoordinator(activeTrip())

	clock := time.Now()
	coordinator.now = func() time.Time { return clock }

	require.NoError(t, coordinator.Ingest(context.Background(), "driver-1", testSample()))

	forced := testSample()
	forced.Force = true
	assert.NoError(t, coordinator.Ingest(context.Background(), "driver-1", forced))
}

func TestIngestRejectsInvalidCoordinates(t *testing.T) {
	coordinator, broadcaster := testCoordinator(activeTrip())

	sample := testSample()
	sample.Latitude = 200

	err := coordinator.Ingest(context.Background(), "driver-1", sample)

	assert.ErrorIs(t, err, ErrInvalidSample)
	assert.Empty(t, broadcaster.kinds())
}

func TestIngestRejectsUnknownTrip(t *testing.T) {
	coordinator, broadcaster := testCoordinator()

	err := coordinator.Ingest(context.Background(), "driver-1", testSample())

	assert.ErrorIs(t, err, ErrTripNotActive)
	assert.Empty(t, broadcaster.kinds())
}

func TestIngestRejectsEndedTrip(t *testing.T) {
	trip := activeTrip()
	trip.Status = tmdf.TripStatusEnded

	coordinator, broadcaster := testCoordinator(trip)

	err := coordinator.Ingest(context.Background(), "driver-1", testSample())

	assert.ErrorIs(t, err, ErrTripNotActive)
	assert.Empty(t, broadcaster.kinds())
}

func TestEndedTripStateIsEvicted(t *testing.T) {
	trip := activeTrip()
	coordinator, _ := testCoordinator(trip)

	clock := time.Now()
	coordinator.now = func() time.Time { return clock }

	require.NoError(t, coordinator.Ingest(context.Background(), "driver-1", testSample()))

	_, exists := coordinator.LastPosition("trackmate-trip-1")
	require.True(t, exists)

	// The trip ends externally; the next rejected sample drops its pipeline
	// state instead of retaining it for the process lifetime
	trip.Status = tmdf.TripStatusEnded

	clock = clock.Add(1001 * time.Millisecond)
	require.ErrorIs(t, coordinator.Ingest(context.Background(), "driver-1", testSample()), ErrTripNotActive)

	_, exists = coordinator.LastPosition("trackmate-trip-1")
	assert.False(t, exists)
}

func TestIngestRejectsWrongDriver(t *testing.T) {
	coordinator, broadcaster := testCoordinator(activeTrip())

	err := coordinator.Ingest(context.Background(), "driver-2", testSample())

	assert.ErrorIs(t, err, ErrNotTripDriver)
	assert.Empty(t, broadcaster.kinds())
}

func TestIngestCausalOrderWithStopEvent(t *testing.T) {
	coordinator, broadcaster := testCoordinator(activeTrip())

	sample := testSample()
	sample.Latitude = 51.5000 // on the first stop

	require.NoError(t, coordinator.Ingest(context.Background(), "driver-1", sample))

	kinds := broadcaster.kinds()
	require.Equal(t, []string{"location", "stop_event", "eta"}, kinds)
	assert.Equal(t, tmdf.StopEventStatusArrived, broadcaster.records[1].Event.Status)
}

func TestThrottledSampleDoesNotBroadcast(t *testing.T) {
	coordinator, broadcaster := testCoordinator(activeTrip())

	clock := time.Now()
	coordinator.now = func() time.Time { return clock }

	require.NoError(t, coordinator.Ingest(context.Background(), "driver-1", testSample()))
	require.ErrorIs(t, coordinator.Ingest(context.Background(), "driver-1", testSample()), ErrThrottled)

	assert.Equal(t, []string{"location", "eta"}, broadcaster.kinds())
}
