package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/realtime/eta"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
	"github.com/trackmate/trackmate/pkg/realtime/stopwatcher"
	"github.com/trackmate/trackmate/pkg/stats"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

var (
	ErrInvalidSample = errors.New("sample failed validation")
	ErrTripNotActive = errors.New("trip is not active")
	ErrNotTripDriver = errors.New("sender does not own the trip")
	ErrThrottled     = errors.New("sample arrived before the minimum publish interval")
)

// TripStore looks trips up in the external persistence collaborator
type TripStore interface {
	GetActiveTrip(ctx context.Context, tripID string) (*tmdf.Trip, error)
}

// Broadcaster receives the outputs of an accepted sample, in causal order
type Broadcaster interface {
	BroadcastLocation(tripID string, position tmdf.NormalizedPosition)
	BroadcastStopEvent(event tmdf.StopEvent)
	BroadcastETASet(set *tmdf.ETASet)
}

// EventSink persists stop events; typically the queue publisher
type EventSink interface {
	PublishStopEvent(event tmdf.StopEvent) error
}

// SnapshotStore records the latest state per trip for reconnecting
// subscribers
type SnapshotStore interface {
	Store(snap snapshot.Snapshot) error
}

type tripState struct {
	mu sync.Mutex

	progress     *stopwatcher.TripProgress
	lastAccepted time.Time
	lastPosition tmdf.NormalizedPosition
}

// Coordinator validates and throttles incoming position samples and drives
// the downstream pipeline: stop transition detection, ETA recomputation,
// fan-out. Per-trip state is serialized under a per-trip lock for the whole
// trigger chain so subscribers observe location, stop events and ETAs of one
// sample in order.
type Coordinator struct {
	config Config

	trips       TripStore
	broadcaster Broadcaster
	events      EventSink
	snapshots   SnapshotStore

	estimator *eta.Estimator
	validate  *validator.Validate

	mu    sync.Mutex
	state map[string]*tripState

	now func() time.Time
}

func NewCoordinator(config Config, trips TripStore, broadcaster Broadcaster) *Coordinator {
	return &Coordinator{
		config: config,

		trips:       trips,
		broadcaster: broadcaster,

		estimator: eta.NewEstimator(config.ETA),
		validate:  validator.New(),

		state: map[string]*tripState{},

		now: time.Now,
	}
}

// WithEventSink attaches a stop event sink; without one events are broadcast
// but not persisted
func (c *Coordinator) WithEventSink(sink EventSink) *Coordinator {
	c.events = sink
	return c
}

// WithSnapshotStore attaches a snapshot store for reconnecting subscribers
func (c *Coordinator) WithSnapshotStore(store SnapshotStore) *Coordinator {
	c.snapshots = store
	return c
}

// Ingest processes one position sample from an authenticated driver. Every
// rejection is silent from the sender's perspective; the returned error is
// for logging and tests only, nothing is broadcast for a rejected or
// throttled sample.
func (c *Coordinator) Ingest(ctx context.Context, driverID string, sample tmdf.PositionSample) error {
	if err := c.validate.Struct(sample); err != nil {
		stats.SamplesRejected.WithLabelValues("invalid").Inc()
		return ErrInvalidSample
	}

	trip, err := c.trips.GetActiveTrip(ctx, sample.TripID)
	if err != nil || trip == nil || trip.Status != tmdf.TripStatusActive {
		stats.SamplesRejected.WithLabelValues("trip_not_active").Inc()
		c.evictTripState(sample.TripID)
		return ErrTripNotActive
	}

	if trip.DriverID != driverID {
		stats.SamplesRejected.WithLabelValues("not_owner").Inc()
		log.Warn().
			Str("trip", sample.TripID).
			Str("driver", driverID).
			Msg("Dropping sample from driver that does not own the trip")
		return ErrNotTripDriver
	}

	state := c.tripState(trip)

	state.mu.Lock()
	defer state.mu.Unlock()

	received := c.now()

	if !sample.Force && !state.lastAccepted.IsZero() &&
		received.Sub(state.lastAccepted) < c.config.MinPublishInterval {
		stats.SamplesThrottled.Inc()
		return ErrThrottled
	}

	state.lastAccepted = received
	state.lastPosition = sample.Normalize()
	stats.SamplesAccepted.Inc()

	// Pure computation first, then fan-out in causal order
	events := state.progress.Update(&sample)
	etaSet := c.estimator.Estimate(trip.PrimaryIdentifier, sample.Location(), sample.Speed, state.progress.RemainingStops())

	c.broadcaster.BroadcastLocation(trip.PrimaryIdentifier, state.lastPosition)

	for _, event := range events {
		stats.StopEventsEmitted.WithLabelValues(string(event.Status)).Inc()
		c.broadcaster.BroadcastStopEvent(event)

		if c.events != nil {
			if err := c.events.PublishStopEvent(event); err != nil {
				log.Error().Err(err).Str("trip", event.TripID).Msg("Failed to queue stop event")
			}
		}
	}

	c.broadcaster.BroadcastETASet(etaSet)

	if c.snapshots != nil {
		err := c.snapshots.Store(snapshot.Snapshot{
			TripID:    trip.PrimaryIdentifier,
			Position:  state.lastPosition,
			ETAs:      etaSet,
			UpdatedAt: received,
		})
		if err != nil {
			log.Error().Err(err).Str("trip", trip.PrimaryIdentifier).Msg("Failed to store trip snapshot")
		}
	}

	return nil
}

// LastPosition returns the authoritative last-known position for a trip, if
// any sample has been accepted for it
func (c *Coordinator) LastPosition(tripID string) (tmdf.NormalizedPosition, bool) {
	c.mu.Lock()
	state, exists := c.state[tripID]
	c.mu.Unlock()

	if !exists {
		return tmdf.NormalizedPosition{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.lastAccepted.IsZero() {
		return tmdf.NormalizedPosition{}, false
	}
	return state.lastPosition, true
}

// evictTripState drops the pipeline state of a trip that is no longer
// active, so ended trips do not accumulate for the process lifetime
func (c *Coordinator) evictTripState(tripID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.state, tripID)
}

func (c *Coordinator) tripState(trip *tmdf.Trip) *tripState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, exists := c.state[trip.PrimaryIdentifier]
	if !exists {
		state = &tripState{
			progress: stopwatcher.NewTripProgress(trip, c.config.StopWatcher),
		}
		c.state[trip.PrimaryIdentifier] = state
	}
	return state
}
