package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/realtime/broadcast"
	"github.com/trackmate/trackmate/pkg/realtime/ingest"
	"github.com/trackmate/trackmate/pkg/realtime/registry"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

const (
	EventAuthToken          = "auth:token"
	EventDriverLocation     = "driver:location_update"
	EventDriverSOS          = "driver:sos"
	EventStudentSubscribe   = "student:subscribe"
	EventStudentUnsubscribe = "student:unsubscribe"
)

// SnapshotReader serves the last known state of a trip to late subscribers
type SnapshotReader interface {
	Get(tripID string) (*snapshot.Snapshot, error)
}

// Gateway terminates websocket connections and routes their frames into the
// realtime pipeline
type Gateway struct {
	registry    *registry.Registry
	coordinator *ingest.Coordinator
	broadcaster *broadcast.Broadcaster
	snapshots   SnapshotReader

	upgrader websocket.Upgrader
}

func NewGateway(reg *registry.Registry, coordinator *ingest.Coordinator, broadcaster *broadcast.Broadcaster) *Gateway {
	return &Gateway{
		registry:    reg,
		coordinator: coordinator,
		broadcaster: broadcaster,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// WithSnapshotReader enables replaying the last trip state to new subscribers
func (g *Gateway) WithSnapshotReader(reader SnapshotReader) *Gateway {
	g.snapshots = reader
	return g
}

func (g *Gateway) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	sock := newSocket(uuid.New().String(), conn)

	g.registry.Register(sock.id, sock)
	defer g.registry.Deregister(sock.id)

	go sock.writePump()

	// One reader per connection keeps each sender's frames in order
	sock.readPump(func(envelope Envelope) {
		g.dispatch(r.Context(), sock, envelope)
	})
}

func (g *Gateway) dispatch(ctx context.Context, sock *socket, envelope Envelope) {
	switch envelope.Event {
	case EventAuthToken:
		g.handleAuth(ctx, sock, envelope.Data)
	case EventDriverLocation:
		g.handleLocation(ctx, sock, envelope.Data)
	case EventDriverSOS:
		g.handleSOS(sock, envelope.Data)
	case EventStudentSubscribe:
		g.handleSubscribe(sock, envelope.Data)
	case EventStudentUnsubscribe:
		g.handleUnsubscribe(sock, envelope.Data)
	default:
		log.Debug().Str("event", envelope.Event).Str("connection", sock.id).Msg("Ignoring unknown event")
	}
}

func (g *Gateway) handleAuth(ctx context.Context, sock *socket, data json.RawMessage) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		return
	}

	g.registry.Authenticate(ctx, sock.id, payload.Token)
}

func (g *Gateway) handleLocation(ctx context.Context, sock *socket, data json.RawMessage) {
	identity, exists := g.registry.Identity(sock.id)
	if !exists || identity.Role != registry.RoleDriver {
		return
	}

	var sample tmdf.PositionSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return
	}

	if err := g.coordinator.Ingest(ctx, identity.UserID, sample); err != nil {
		// Rejections are silent towards the sender
		log.Debug().Err(err).Str("trip", sample.TripID).Msg("Sample not published")

		if err != ingest.ErrThrottled {
			auditRejectedSample(identity.UserID, err, sample)
		}
	}
}

func (g *Gateway) handleSOS(sock *socket, data json.RawMessage) {
	identity, exists := g.registry.Identity(sock.id)
	if !exists || identity.Role != registry.RoleDriver {
		return
	}

	var alert tmdf.SOSAlert
	if err := json.Unmarshal(data, &alert); err != nil || alert.TripID == "" {
		return
	}
	alert.Timestamp = time.Now()

	log.Warn().
		Str("trip", alert.TripID).
		Str("driver", identity.UserID).
		Msg("SOS alert raised")

	g.broadcaster.BroadcastSOS(alert)
	auditSOS(identity.UserID, alert)
}

func (g *Gateway) handleSubscribe(sock *socket, data json.RawMessage) {
	var payload struct {
		TripID string `json:"tripId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.TripID == "" {
		return
	}

	if !g.registry.Subscribe(sock.id, payload.TripID) {
		return
	}

	g.replaySnapshot(sock, payload.TripID)
}

func (g *Gateway) handleUnsubscribe(sock *socket, data json.RawMessage) {
	var payload struct {
		TripID string `json:"tripId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.TripID == "" {
		return
	}

	g.registry.Unsubscribe(sock.id, payload.TripID)
}

// replaySnapshot sends the last known position and ETAs of a trip to one
// freshly subscribed connection so it does not have to wait for the next
// driver sample
func (g *Gateway) replaySnapshot(sock *socket, tripID string) {
	if g.snapshots == nil {
		return
	}

	snap, err := g.snapshots.Get(tripID)
	if err != nil || snap == nil {
		return
	}

	sock.Send(broadcast.EventLocationUpdate, broadcast.LocationUpdate{
		TripID:             tripID,
		NormalizedPosition: snap.Position,
	})
	if snap.ETAs != nil {
		sock.Send(broadcast.EventETAUpdate, snap.ETAs)
	}
}
