package broadcast

import (
	"github.com/sourcegraph/conc/pool"
	"github.com/trackmate/trackmate/pkg/realtime/registry"
	"github.com/trackmate/trackmate/pkg/stats"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

const (
	EventLocationUpdate = "trip:location_update"
	EventStopArrived    = "trip:stop_arrived"
	EventStopLeft       = "trip:stop_left"
	EventETAUpdate      = "trip:eta_update"
	EventSOS            = "trip:sos"
)

const maxConcurrentSends = 64

// LocationUpdate is the normalized position as republished to subscribers
type LocationUpdate struct {
	TripID string `json:"tripId"`

	tmdf.NormalizedPosition
}

// Broadcaster fans events out to the connections subscribed to a trip.
// Delivery is best-effort and at-most-once: a subscriber that is offline at
// broadcast time receives nothing, and failed sends are dropped, not queued.
//
// Each call delivers to all current subscribers before returning, so the
// per-sample order of calls (location, stop events, ETA set) is the order
// every individual subscriber observes.
type Broadcaster struct {
	registry *registry.Registry
}

func NewBroadcaster(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{registry: reg}
}

func (b *Broadcaster) BroadcastLocation(tripID string, position tmdf.NormalizedPosition) {
	b.send(b.registry.Subscribers(tripID), EventLocationUpdate, LocationUpdate{
		TripID:             tripID,
		NormalizedPosition: position,
	})
}

func (b *Broadcaster) BroadcastStopEvent(event tmdf.StopEvent) {
	name := EventStopArrived
	if event.Status == tmdf.StopEventStatusLeft {
		name = EventStopLeft
	}

	b.send(b.registry.Subscribers(event.TripID), name, event)
}

func (b *Broadcaster) BroadcastETASet(set *tmdf.ETASet) {
	b.send(b.registry.Subscribers(set.TripID), EventETAUpdate, set)
}

// BroadcastSOS goes to the trip's subscribers and every admin, immediately
// and unthrottled
func (b *Broadcaster) BroadcastSOS(alert tmdf.SOSAlert) {
	seen := map[registry.Sender]bool{}
	var targets []registry.Sender

	for _, sender := range b.registry.Subscribers(alert.TripID) {
		if !seen[sender] {
			seen[sender] = true
			targets = append(targets, sender)
		}
	}
	for _, sender := range b.registry.Admins() {
		if !seen[sender] {
			seen[sender] = true
			targets = append(targets, sender)
		}
	}

	b.send(targets, EventSOS, alert)
}

// send delivers one event to each target in parallel and waits for all sends
// to finish, preserving the per-subscriber ordering of successive calls
func (b *Broadcaster) send(targets []registry.Sender, event string, payload any) {
	if len(targets) == 0 {
		return
	}

	p := pool.New()
	p.WithMaxGoroutines(maxConcurrentSends)

	for _, sender := range targets {
		p.Go(func() {
			if err := sender.Send(event, payload); err != nil {
				stats.BroadcastsDropped.Inc()
				return
			}
			stats.BroadcastsSent.WithLabelValues(event).Inc()
		})
	}

	p.Wait()
}
