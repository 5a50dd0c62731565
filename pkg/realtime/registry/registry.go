package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/stats"
	"golang.org/x/exp/slices"
)

const EventAuthReady = "auth:ready"
const EventLiveVisitors = "stats:live_visitors"

type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleDriver    Role = "driver"
	RoleStudent   Role = "student"
	RoleAdmin     Role = "admin"
)

type Identity struct {
	UserID string
	Role   Role
}

// TokenValidator maps an opaque credential token to an identity. External
// collaborator - the registry never inspects tokens itself.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

// Sender delivers one event to one connection. Implementations must not
// block; a send to a closed connection returns an error which callers treat
// as a silent drop.
type Sender interface {
	Send(event string, payload any) error
}

type connection struct {
	id       string
	sender   Sender
	identity Identity

	subscriptions []string
}

// Registry is the authoritative mapping from live connection to identity and
// trip subscriptions. All mutation happens under one lock; broadcast paths
// only take read snapshots, so deregistering during an in-flight fan-out is
// safe and the dropped sends are not errors.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*connection

	validator   TokenValidator
	authTimeout time.Duration
}

func NewRegistry(validator TokenValidator) *Registry {
	return &Registry{
		connections: map[string]*connection{},
		validator:   validator,
		authTimeout: 10 * time.Second,
	}
}

// Register creates an unauthenticated connection entry and announces the new
// live visitor count to everyone.
func (r *Registry) Register(connectionID string, sender Sender) {
	r.mu.Lock()
	r.connections[connectionID] = &connection{
		id:       connectionID,
		sender:   sender,
		identity: Identity{Role: RoleAnonymous},
	}
	count := len(r.connections)
	r.mu.Unlock()

	stats.ConnectionsActive.Set(float64(count))
	r.broadcastVisitorCount(count)
}

// Deregister removes the connection and all its subscriptions. Safe to call
// for unknown ids and concurrently with broadcasts.
func (r *Registry) Deregister(connectionID string) {
	r.mu.Lock()
	_, exists := r.connections[connectionID]
	delete(r.connections, connectionID)
	count := len(r.connections)
	r.mu.Unlock()

	if !exists {
		return
	}

	stats.ConnectionsActive.Set(float64(count))
	r.broadcastVisitorCount(count)
}

// Authenticate validates the token through the external validator and binds
// the resulting identity to the connection. On success only the authenticated
// connection is told; on failure nothing is broadcast and the connection
// stays anonymous.
func (r *Registry) Authenticate(ctx context.Context, connectionID string, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.authTimeout)
	defer cancel()

	identity, err := r.validator.Validate(ctx, token)
	if err != nil {
		log.Info().Err(err).Str("connection", connectionID).Msg("Authentication failed")
		return false
	}

	r.mu.Lock()
	conn, exists := r.connections[connectionID]
	if exists {
		conn.identity = identity
	}
	sender := Sender(nil)
	if exists {
		sender = conn.sender
	}
	r.mu.Unlock()

	if !exists {
		// Connection went away while the validator was running
		return false
	}

	sender.Send(EventAuthReady, map[string]any{})

	log.Debug().
		Str("connection", connectionID).
		Str("user", identity.UserID).
		Str("role", string(identity.Role)).
		Msg("Connection authenticated")

	return true
}

// Subscribe adds the trip to the connection's subscriptions. Only students
// and admins may subscribe; duplicate subscriptions are a no-op.
func (r *Registry) Subscribe(connectionID string, tripID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return false
	}

	if conn.identity.Role != RoleStudent && conn.identity.Role != RoleAdmin {
		return false
	}

	if slices.Contains(conn.subscriptions, tripID) {
		return true
	}

	conn.subscriptions = append(conn.subscriptions, tripID)
	return true
}

// Unsubscribe removes the trip subscription; unsubscribing a trip that was
// never subscribed is a no-op.
func (r *Registry) Unsubscribe(connectionID string, tripID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return
	}

	index := slices.Index(conn.subscriptions, tripID)
	if index >= 0 {
		conn.subscriptions = slices.Delete(conn.subscriptions, index, index+1)
	}
}

// Identity returns the bound identity for a connection
func (r *Registry) Identity(connectionID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return Identity{}, false
	}
	return conn.identity, true
}

// Count is a derived read of the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

// Subscribers returns a snapshot of the senders subscribed to a trip
func (r *Registry) Subscribers(tripID string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var senders []Sender
	for _, conn := range r.connections {
		if slices.Contains(conn.subscriptions, tripID) {
			senders = append(senders, conn.sender)
		}
	}
	return senders
}

// Admins returns a snapshot of all admin connection senders
func (r *Registry) Admins() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var senders []Sender
	for _, conn := range r.connections {
		if conn.identity.Role == RoleAdmin {
			senders = append(senders, conn.sender)
		}
	}
	return senders
}

// All returns a snapshot of every connected sender
func (r *Registry) All() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	senders := make([]Sender, 0, len(r.connections))
	for _, conn := range r.connections {
		senders = append(senders, conn.sender)
	}
	return senders
}

func (r *Registry) broadcastVisitorCount(count int) {
	for _, sender := range r.All() {
		if err := sender.Send(EventLiveVisitors, count); err != nil {
			stats.BroadcastsDropped.Inc()
		}
	}
}
