package stopwatcher

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

type StopStatus string

const (
	StopStatusNotReached StopStatus = "not-yet-reached"
	StopStatusArrived    StopStatus = "arrived"
	StopStatusDeparted   StopStatus = "departed"
)

type Config struct {
	// ArrivalRadiusMetres must be smaller than DepartureRadiusMetres so a
	// bus jittering at the boundary cannot flap between arrived and departed
	ArrivalRadiusMetres   float64
	DepartureRadiusMetres float64
}

func DefaultConfig() Config {
	return Config{
		ArrivalRadiusMetres:   60,
		DepartureRadiusMetres: 90,
	}
}

type stopState struct {
	Status     StopStatus
	ArrivedAt  time.Time
	DepartedAt time.Time
}

// TripProgress is the per-trip stop transition state machine. Transitions are
// monotonic: a stop never moves back from departed, and stops are reached in
// ascending sequence order unless a forced sample teleports the bus.
type TripProgress struct {
	TripID string
	Stops  []tmdf.RouteStop

	// CurrentStopIndex is the index of the last stop confirmed arrived,
	// -1 before the first stop is reached
	CurrentStopIndex int

	config Config
	states []stopState
}

func NewTripProgress(trip *tmdf.Trip, config Config) *TripProgress {
	states := make([]stopState, len(trip.Stops))
	for i := range states {
		states[i].Status = StopStatusNotReached
	}

	currentStopIndex := trip.CurrentStopIndex
	if currentStopIndex >= len(trip.Stops) {
		currentStopIndex = len(trip.Stops) - 1
	}

	// A trip resumed mid-route already departed everything before its
	// current index
	for i := 0; i <= currentStopIndex; i++ {
		states[i].Status = StopStatusDeparted
	}

	return &TripProgress{
		TripID:           trip.PrimaryIdentifier,
		Stops:            trip.Stops,
		CurrentStopIndex: currentStopIndex,

		config: config,
		states: states,
	}
}

// Update evaluates one accepted position sample and returns the stop events
// it produced, in causal order (a departure from the current stop precedes an
// arrival at the next one).
func (p *TripProgress) Update(sample *tmdf.PositionSample) []tmdf.StopEvent {
	if len(p.Stops) == 0 {
		return nil
	}

	if sample.Force {
		return p.teleport(sample)
	}

	location := sample.Location()
	var events []tmdf.StopEvent

	// Departure check for the stop we most recently arrived at
	if p.CurrentStopIndex >= 0 && p.states[p.CurrentStopIndex].Status == StopStatusArrived {
		currentStop := p.Stops[p.CurrentStopIndex]

		if location.Distance(currentStop.Location) > p.config.DepartureRadiusMetres {
			events = append(events, p.transition(p.CurrentStopIndex, StopStatusDeparted, sample))
		}
	}

	// Arrival check for the next expected stop only - skipping ahead is not
	// permitted without a forced sample
	nextIndex := p.CurrentStopIndex + 1
	if nextIndex < len(p.Stops) {
		nextStop := p.Stops[nextIndex]

		if p.states[nextIndex].Status == StopStatusNotReached &&
			location.Distance(nextStop.Location) < p.config.ArrivalRadiusMetres {
			events = append(events, p.transition(nextIndex, StopStatusArrived, sample))
			p.CurrentStopIndex = nextIndex
		}
	}

	return events
}

// StopStatus returns the transition status of the stop at the given index
func (p *TripProgress) StopStatus(index int) StopStatus {
	if index < 0 || index >= len(p.states) {
		return StopStatusNotReached
	}
	return p.states[index].Status
}

// RemainingStops returns the stops not yet arrived at, in sequence order
func (p *TripProgress) RemainingStops() []tmdf.RouteStop {
	var remaining []tmdf.RouteStop
	for i, stop := range p.Stops {
		if p.states[i].Status == StopStatusNotReached {
			remaining = append(remaining, stop)
		}
	}
	return remaining
}

// teleport snaps the state machine to the stop nearest the forced sample,
// bypassing the ascending-order invariant. Override path for manual
// repositioning and simulation only.
func (p *TripProgress) teleport(sample *tmdf.PositionSample) []tmdf.StopEvent {
	location := sample.Location()

	nearestIndex := 0
	nearestDistance := location.Distance(p.Stops[0].Location)
	for i := 1; i < len(p.Stops); i++ {
		distance := location.Distance(p.Stops[i].Location)
		if distance < nearestDistance {
			nearestDistance = distance
			nearestIndex = i
		}
	}

	log.Debug().
		Str("trip", p.TripID).
		Int("stop", nearestIndex).
		Msg("Forced sample teleported trip progress")

	var events []tmdf.StopEvent

	for i := 0; i < nearestIndex; i++ {
		p.states[i].Status = StopStatusDeparted
	}

	if nearestDistance < p.config.ArrivalRadiusMetres {
		if p.states[nearestIndex].Status == StopStatusNotReached {
			events = append(events, p.transition(nearestIndex, StopStatusArrived, sample))
		}
		p.CurrentStopIndex = nearestIndex
	} else {
		// Teleported between stops: the nearest stop only counts as departed
		// when the position sits past it, towards the following stop
		p.CurrentStopIndex = nearestIndex - 1

		if nearestIndex+1 < len(p.Stops) {
			toNext := location.Distance(p.Stops[nearestIndex+1].Location)
			stopGap := p.Stops[nearestIndex].Location.Distance(p.Stops[nearestIndex+1].Location)

			if toNext < stopGap {
				p.states[nearestIndex].Status = StopStatusDeparted
				p.CurrentStopIndex = nearestIndex
			}
		}
	}

	return events
}

func (p *TripProgress) transition(index int, status StopStatus, sample *tmdf.PositionSample) tmdf.StopEvent {
	timestamp := sample.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	p.states[index].Status = status

	eventStatus := tmdf.StopEventStatusArrived
	if status == StopStatusArrived {
		p.states[index].ArrivedAt = timestamp
	} else {
		p.states[index].DepartedAt = timestamp
		eventStatus = tmdf.StopEventStatusLeft
	}

	return tmdf.StopEvent{
		TripID:    p.TripID,
		StopIndex: p.Stops[index].Sequence,
		StopName:  p.Stops[index].PrimaryName,
		Status:    eventStatus,
		Location:  sample.Location(),
		Timestamp: timestamp,
		Source:    "detector",
	}
}
