package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Event   string
	Payload any
}

type fakeSender struct {
	mu     sync.Mutex
	events []recordedEvent
	fail   bool
}

func (s *fakeSender) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("connection closed")
	}

	s.events = append(s.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (s *fakeSender) received(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, recorded := range s.events {
		if recorded.Event == event {
			count++
		}
	}
	return count
}

type fakeValidator struct {
	identities map[string]Identity
}

func (v *fakeValidator) Validate(ctx context.Context, token string) (Identity, error) {
	identity, exists := v.identities[token]
	if !exists {
		return Identity{}, errors.New("invalid token")
	}
	return identity, nil
}

func testRegistry() *Registry {
	return NewRegistry(&fakeValidator{
		identities: map[string]Identity{
			"driver-token":  {UserID: "driver-1", Role: RoleDriver},
			"student-token": {UserID: "student-1", Role: RoleStudent},
			"admin-token":   {UserID: "admin-1", Role: RoleAdmin},
		},
	})
}

func TestRegisterBroadcastsVisitorCount(t *testing.T) {
	reg := testRegistry()

	first := &fakeSender{}
	second := &fakeSender{}

	reg.Register("conn-1", first)
	reg.Register("conn-2", second)

	assert.Equal(t, 2, reg.Count())
	// conn-1 saw both changes, conn-2 only its own
	assert.Equal(t, 2, first.received(EventLiveVisitors))
	assert.Equal(t, 1, second.received(EventLiveVisitors))
}

func TestAuthenticateBindsIdentity(t *testing.T) {
	reg := testRegistry()
	sender := &fakeSender{}
	other := &fakeSender{}

	reg.Register("conn-1", sender)
	reg.Register("conn-2", other)

	require.True(t, reg.Authenticate(context.Background(), "conn-1", "student-token"))

	identity, exists := reg.Identity("conn-1")
	require.True(t, exists)
	assert.Equal(t, "student-1", identity.UserID)
	assert.Equal(t, RoleStudent, identity.Role)

	// auth:ready reaches only the authenticated connection
	assert.Equal(t, 1, sender.received(EventAuthReady))
	assert.Equal(t, 0, other.received(EventAuthReady))
}

func TestAuthenticateFailsSilently(t *testing.T) {
	reg := testRegistry()
	sender := &fakeSender{}

	reg.Register("conn-1", sender)

	assert.False(t, reg.Authenticate(context.Background(), "conn-1", "bogus"))

	identity, exists := reg.Identity("conn-1")
	require.True(t, exists)
	assert.Equal(t, RoleAnonymous, identity.Role)
	assert.Equal(t, 0, sender.received(EventAuthReady))
}

func TestAuthenticateUnknownConnection(t *testing.T) {
	reg := testRegistry()

	assert.False(t, reg.Authenticate(context.Background(), "gone", "student-token"))
}

func TestSubscribeRequiresStudentOrAdmin(t *testing.T) {
	reg := testRegistry()

	reg.Register("anon", &fakeSender{})
	reg.Register("driver", &fakeSender{})
	reg.Register("student", &fakeSender{})
	reg.Register("admin", &fakeSender{})

	require.True(t, reg.Authenticate(context.Background(), "driver", "driver-token"))
	require.True(t, reg.Authenticate(context.Background(), "student", "student-token"))
	require.True(t, reg.Authenticate(context.Background(), "admin", "admin-token"))

	assert.False(t, reg.Subscribe("anon", "trip-1"))
	assert.False(t, reg.Subscribe("driver", "trip-1"))
	assert.True(t, reg.Subscribe("student", "trip-1"))
	assert.True(t, reg.Subscribe("admin", "trip-1"))

	assert.Len(t, reg.Subscribers("trip-1"), 2)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	reg := testRegistry()
	sender := &fakeSender{}

	reg.Register("conn-1", sender)
	require.True(t, reg.Authenticate(context.Background(), "conn-1", "student-token"))

	assert.True(t, reg.Subscribe("conn-1", "trip-1"))
	assert.True(t, reg.Subscribe("conn-1", "trip-1"))

	assert.Len(t, reg.Subscribers("trip-1"), 1)
}

func TestUnsubscribeUnknownTripIsNoOp(t *testing.T) {
	reg := testRegistry()
	sender := &fakeSender{}

	reg.Register("conn-1", sender)
	require.True(t, reg.Authenticate(context.Background(), "conn-1", "student-token"))
	require.True(t, reg.Subscribe("conn-1", "trip-1"))

	reg.Unsubscribe("conn-1", "never-subscribed")
	reg.Unsubscribe("missing-conn", "trip-1")

	assert.Len(t, reg.Subscribers("trip-1"), 1)

	reg.Unsubscribe("conn-1", "trip-1")
	assert.Empty(t, reg.Subscribers("trip-1"))
}

func TestDeregisterRemovesSubscriptions(t *testing.T) {
	reg := testRegistry()
	sender := &fakeSender{}

	reg.Register("conn-1", sender)
	require.True(t, reg.Authenticate(context.Background(), "conn-1", "student-token"))
	require.True(t, reg.Subscribe("conn-1", "trip-1"))

	reg.Deregister("conn-1")

	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.Subscribers("trip-1"))

	// Deregistering twice is safe
	reg.Deregister("conn-1")
}

func TestBroadcastToFailedSenderIsSilent(t *testing.T) {
	reg := testRegistry()

	reg.Register("conn-1", &fakeSender{fail: true})
	reg.Register("conn-2", &fakeSender{})

	assert.Equal(t, 2, reg.Count())
}
