package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackmate_samples_accepted_total",
		Help: "Position samples accepted by ingest.",
	})
	SamplesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackmate_samples_throttled_total",
		Help: "Position samples dropped by the per-trip publish interval.",
	})
	SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackmate_samples_rejected_total",
		Help: "Position samples rejected by ingest validation.",
	}, []string{"reason"})

	StopEventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackmate_stop_events_total",
		Help: "Stop transition events emitted by the detector.",
	}, []string{"status"})

	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackmate_broadcasts_sent_total",
		Help: "Messages fanned out to subscribers.",
	}, []string{"event"})
	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackmate_broadcasts_dropped_total",
		Help: "Fan-out sends dropped because the subscriber had gone away or was too slow.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trackmate_connections_active",
		Help: "Currently connected websocket clients.",
	})

	StopEventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackmate_stop_events_persisted_total",
		Help: "Stop events written to the stop_events collection.",
	})
)
