package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"lodgetix/internal/realtime"
	"lodgetix/internal/shared/config"
	"lodgetix/internal/tickets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//  FAKES

type fakeEngine struct {
	mu sync.Mutex

	reserveCalls int
	reserveRows  []tickets.ReservedTicket
	reserveErr   error
	lastEventID  string
	lastDefID    string
	lastQuantity int
	lastHold     time.Duration

	completeCalls int
	completeIDs   []string
	completeErr   error

	availability    *tickets.Availability
	availabilityErr error
}

func (f *fakeEngine) ReserveTickets(ctx context.Context, eventID, ticketDefinitionID string, quantity int, holdDuration time.Duration) ([]tickets.ReservedTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++
	f.lastEventID = eventID
	f.lastDefID = ticketDefinitionID
	f.lastQuantity = quantity
	f.lastHold = holdDuration
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	return f.reserveRows, nil
}

func (f *fakeEngine) CompleteReservation(ctx context.Context, reservationID, attendeeID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completeIDs, nil
}

func (f *fakeEngine) GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID string) (*tickets.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEventID = eventID
	f.lastDefID = ticketDefinitionID
	if f.availabilityErr != nil {
		return nil, f.availabilityErr
	}
	return f.availability, nil
}

type fakeSubscriber struct {
	mu           sync.Mutex
	subscribeErr error
	active       map[string]int
	channels     map[string]chan []byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		active:   make(map[string]int),
		channels: make(map[string]chan []byte),
	}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, channel string) (<-chan []byte, realtime.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, nil, f.subscribeErr
	}

	ch := make(chan []byte, 8)
	f.active[channel]++
	f.channels[channel] = ch

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			f.mu.Lock()
			f.active[channel]--
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub, nil
}

func (f *fakeSubscriber) activeCount(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[channel]
}

func (f *fakeSubscriber) publish(channel string, payload []byte) {
	f.mu.Lock()
	ch := f.channels[channel]
	f.mu.Unlock()
	ch <- payload
}

type fakeBootstrapper struct {
	mu      sync.Mutex
	calls   int
	session *BootstrappedSession
	err     error
}

func (f *fakeBootstrapper) SignInAnonymously(ctx context.Context) (*BootstrappedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type presenceToggle struct {
	eventID   string
	clientID  string
	reserving bool
}

type fakePresence struct {
	mu      sync.Mutex
	toggles []presenceToggle
}

func (f *fakePresence) SetReserving(ctx context.Context, eventID, clientID string, reserving bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, presenceToggle{eventID: eventID, clientID: clientID, reserving: reserving})
}

func newTestService(engine *fakeEngine, subscriber *fakeSubscriber) *Service {
	cfg := config.ReservationConfig{
		DefaultHoldDuration: 15 * time.Minute,
		OperationTimeout:    time.Second,
		CacheTTL:            30 * time.Minute,
	}
	return NewService(engine, subscriber, realtime.NewPresenceEmitter(8), nil, cfg)
}

func reservedRows(n int) []tickets.ReservedTicket {
	rows := make([]tickets.ReservedTicket, n)
	expires := time.Now().Add(15 * time.Minute)
	for i := range rows {
		rows[i] = tickets.ReservedTicket{
			TicketID:      fmt.Sprintf("ticket-%d", i+1),
			ReservationID: "res-1",
			ExpiresAt:     expires,
		}
	}
	return rows
}

//  RESERVE

func TestReserveTicketsSuccess(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(3)}
	service := newTestService(engine, newFakeSubscriber())

	result := service.ReserveTickets(context.Background(), "", "E1", "T1", 3)

	require.True(t, result.Success)
	require.Nil(t, result.Failure)
	require.Len(t, result.Reservations, 3)
	for _, reservation := range result.Reservations {
		assert.Equal(t, "res-1", reservation.ReservationID)
		assert.Equal(t, "E1", reservation.EventID)
		assert.Equal(t, "T1", reservation.TicketDefinitionID)
		assert.False(t, reservation.ExpiresAt.IsZero())
	}
	assert.Equal(t, 3, engine.lastQuantity)
	assert.Equal(t, 15*time.Minute, engine.lastHold)
}

func TestReserveTicketsRejectsNonPositiveQuantityBeforeBackend(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	service := newTestService(engine, newFakeSubscriber())

	for _, quantity := range []int{0, -1, -100} {
		result := service.ReserveTickets(context.Background(), "", "E1", "T1", quantity)

		require.NotNil(t, result.Failure, "quantity %d", quantity)
		assert.False(t, result.Success)
		assert.Equal(t, FailureValidation, result.Failure.Kind)
	}

	// Validation happens before any engine call
	assert.Equal(t, 0, engine.reserveCalls)
}

func TestReserveTicketsRequiresDefinitionID(t *testing.T) {
	engine := &fakeEngine{}
	service := newTestService(engine, newFakeSubscriber())

	result := service.ReserveTickets(context.Background(), "", "E1", "", 2)

	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureValidation, result.Failure.Kind)
	assert.Equal(t, 0, engine.reserveCalls)
}

func TestReserveTicketsEmptyEventIDFallsBackToDefinitionID(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	service := newTestService(engine, newFakeSubscriber())

	result := service.ReserveTickets(context.Background(), "", "", "T1", 1)

	require.True(t, result.Success)
	assert.Equal(t, "T1", engine.lastEventID)
	assert.Equal(t, "T1", engine.lastDefID)
	assert.Equal(t, "T1", result.Reservations[0].EventID)
}

func TestReserveTicketsMapsEngineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"timeout", context.DeadlineExceeded, FailureTimedOut},
		{"insufficient", tickets.ErrInsufficientAvailability, FailureInsufficientStock},
		{"invalid quantity", tickets.ErrInvalidQuantity, FailureValidation},
		{"invalid id", fmt.Errorf("%w: event ID %q", errInvalidID, "nope"), FailureValidation},
		{"not bookable", tickets.ErrEventNotBookable, FailureValidation},
		{"storage", ErrStorageUnavailable, FailureStorageUnavailable},
		{"unknown", fmt.Errorf("boom"), FailureInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{reserveErr: tc.err}
			service := newTestService(engine, newFakeSubscriber())

			result := service.ReserveTickets(context.Background(), "", "E1", "T1", 1)

			require.NotNil(t, result.Failure)
			assert.False(t, result.Success)
			assert.Equal(t, tc.kind, result.Failure.Kind)
		})
	}
}

//  SESSION BOOTSTRAP

func TestReserveTicketsBootstrapsAnonymousSession(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	bootstrapper := &fakeBootstrapper{session: &BootstrappedSession{
		ClientID:     "anon-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
	}}
	service := newTestService(engine, newFakeSubscriber())
	service.SetSessionBootstrapper(bootstrapper)
	service.store = newReservationStore(newMemoryKV(), time.Minute)

	result := service.ReserveTickets(context.Background(), "", "E1", "T1", 1)

	require.True(t, result.Success)
	assert.Equal(t, 1, bootstrapper.calls)
	require.NotNil(t, result.Session)
	assert.Equal(t, "anon-1", result.Session.ClientID)
	assert.Equal(t, "access", result.Session.AccessToken)

	// The hold is cached under the minted identity
	cached, err := service.store.Get(context.Background(), "anon-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "res-1", cached.ReservationID)
}

func TestReserveTicketsKeepsExistingIdentity(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	bootstrapper := &fakeBootstrapper{session: &BootstrappedSession{ClientID: "anon-1"}}
	service := newTestService(engine, newFakeSubscriber())
	service.SetSessionBootstrapper(bootstrapper)
	service.store = newReservationStore(newMemoryKV(), time.Minute)

	result := service.ReserveTickets(context.Background(), "user-7", "E1", "T1", 1)

	require.True(t, result.Success)
	assert.Equal(t, 0, bootstrapper.calls)
	assert.Nil(t, result.Session)
}

func TestReserveTicketsProceedsWhenBootstrapFails(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	bootstrapper := &fakeBootstrapper{err: fmt.Errorf("auth backend down")}
	service := newTestService(engine, newFakeSubscriber())
	service.SetSessionBootstrapper(bootstrapper)

	result := service.ReserveTickets(context.Background(), "", "E1", "T1", 1)

	// The hold is still granted, just without an identity attached
	require.True(t, result.Success)
	assert.Equal(t, 1, bootstrapper.calls)
	assert.Nil(t, result.Session)
	assert.Equal(t, 1, engine.reserveCalls)
}

func TestReserveTicketsValidationSkipsBootstrap(t *testing.T) {
	bootstrapper := &fakeBootstrapper{session: &BootstrappedSession{ClientID: "anon-1"}}
	service := newTestService(&fakeEngine{}, newFakeSubscriber())
	service.SetSessionBootstrapper(bootstrapper)

	result := service.ReserveTickets(context.Background(), "", "E1", "T1", 0)

	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureValidation, result.Failure.Kind)
	assert.Equal(t, 0, bootstrapper.calls)
}

//  PRESENCE TOGGLE

func TestReserveTicketsSetsReservingFlag(t *testing.T) {
	engine := &fakeEngine{reserveRows: reservedRows(1)}
	presence := &fakePresence{}
	service := newTestService(engine, newFakeSubscriber())
	service.SetPresence(presence)
	service.store = newReservationStore(newMemoryKV(), time.Minute)

	result := service.ReserveTickets(context.Background(), "user-7", "E1", "T1", 1)

	require.True(t, result.Success)
	require.Len(t, presence.toggles, 1)
	assert.Equal(t, presenceToggle{eventID: "E1", clientID: "user-7", reserving: true}, presence.toggles[0])
}

func TestReserveTicketsRevertsReservingOnFailure(t *testing.T) {
	engine := &fakeEngine{reserveErr: tickets.ErrInsufficientAvailability}
	presence := &fakePresence{}
	service := newTestService(engine, newFakeSubscriber())
	service.SetPresence(presence)

	result := service.ReserveTickets(context.Background(), "user-7", "E1", "T1", 1)

	require.NotNil(t, result.Failure)
	require.Len(t, presence.toggles, 2)
	assert.True(t, presence.toggles[0].reserving)
	assert.False(t, presence.toggles[1].reserving)
	assert.Equal(t, "user-7", presence.toggles[1].clientID)
}

//  CLIENT STATE

func TestClearCurrentReservationDropsCachedHold(t *testing.T) {
	service := newTestService(&fakeEngine{reserveRows: reservedRows(1)}, newFakeSubscriber())
	service.store = newReservationStore(newMemoryKV(), time.Minute)

	result := service.ReserveTickets(context.Background(), "client-1", "E1", "T1", 1)
	require.True(t, result.Success)

	require.Nil(t, service.ClearCurrentReservation(context.Background(), "client-1"))

	cached, err := service.store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

//  COMPLETE

func TestCompleteReservationReturnsTicketIDsOnly(t *testing.T) {
	engine := &fakeEngine{completeIDs: []string{"ticket-1", "ticket-2"}}
	service := newTestService(engine, newFakeSubscriber())

	result := service.CompleteReservation(context.Background(), "", "res-1", "attendee-1")

	require.True(t, result.Success)
	assert.Equal(t, "res-1", result.ReservationID)
	assert.Equal(t, []string{"ticket-1", "ticket-2"}, result.TicketIDs)
}

func TestCompleteReservationValidatesInput(t *testing.T) {
	engine := &fakeEngine{}
	service := newTestService(engine, newFakeSubscriber())

	result := service.CompleteReservation(context.Background(), "", "", "attendee-1")
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureValidation, result.Failure.Kind)

	result = service.CompleteReservation(context.Background(), "", "res-1", "")
	require.NotNil(t, result.Failure)
	assert.Equal(t, FailureValidation, result.Failure.Kind)

	assert.Equal(t, 0, engine.completeCalls)
}

func TestCompleteReservationMapsEngineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"not found", tickets.ErrReservationNotFound, FailureNotFound},
		{"expired", tickets.ErrReservationExpired, FailureExpired},
		{"timeout", context.DeadlineExceeded, FailureTimedOut},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{completeErr: tc.err}
			service := newTestService(engine, newFakeSubscriber())

			result := service.CompleteReservation(context.Background(), "", "res-1", "attendee-1")

			require.NotNil(t, result.Failure)
			assert.Equal(t, tc.kind, result.Failure.Kind)
		})
	}
}

//  AVAILABILITY

func TestGetTicketAvailabilityReturnsCounts(t *testing.T) {
	engine := &fakeEngine{availability: &tickets.Availability{Available: 7, Reserved: 2, Sold: 1}}
	service := newTestService(engine, newFakeSubscriber())

	snapshot := service.GetTicketAvailability(context.Background(), "E1", "T1")

	assert.Equal(t, 7, snapshot.Available)
	assert.Equal(t, 2, snapshot.Reserved)
	assert.Equal(t, 1, snapshot.Sold)
	assert.False(t, snapshot.Degraded)
}

func TestGetTicketAvailabilityFailsOpenToZeros(t *testing.T) {
	engine := &fakeEngine{availabilityErr: fmt.Errorf("postgres down")}
	service := newTestService(engine, newFakeSubscriber())

	snapshot := service.GetTicketAvailability(context.Background(), "E1", "T1")

	assert.True(t, snapshot.Degraded)
	assert.Zero(t, snapshot.Available)
	assert.Zero(t, snapshot.Reserved)
	assert.Zero(t, snapshot.Sold)
}

func TestGetTicketAvailabilityEmptyEventIDFallsBack(t *testing.T) {
	engine := &fakeEngine{availability: &tickets.Availability{Available: 4}}
	service := newTestService(engine, newFakeSubscriber())

	snapshot := service.GetTicketAvailability(context.Background(), "", "T1")

	assert.Equal(t, 4, snapshot.Available)
	assert.Equal(t, "T1", engine.lastEventID)
}

//  LIFECYCLE

func TestInitializeRealtimeConnectionsIsIdempotent(t *testing.T) {
	subscriber := newFakeSubscriber()
	service := newTestService(&fakeEngine{}, subscriber)

	require.Nil(t, service.InitializeRealtimeConnections(context.Background(), "E1"))
	require.Nil(t, service.InitializeRealtimeConnections(context.Background(), "E1"))

	assert.Equal(t, 1, subscriber.activeCount("presence-tickets-E1"))
	assert.Equal(t, 1, subscriber.activeCount("system-tickets-E1"))
	assert.Equal(t, []string{"presence-tickets-E1", "system-tickets-E1"}, service.ActiveChannels())
}

func TestInitializeRealtimeConnectionsRequiresEventID(t *testing.T) {
	service := newTestService(&fakeEngine{}, newFakeSubscriber())

	failure := service.InitializeRealtimeConnections(context.Background(), "")

	require.NotNil(t, failure)
	assert.Equal(t, FailureValidation, failure.Kind)
}

func TestCleanupRealtimeConnectionsEmptiesActiveChannels(t *testing.T) {
	subscriber := newFakeSubscriber()
	service := newTestService(&fakeEngine{}, subscriber)

	require.Nil(t, service.InitializeRealtimeConnections(context.Background(), "E1"))
	require.Nil(t, service.InitializeRealtimeConnections(context.Background(), "E2"))
	require.Len(t, service.ActiveChannels(), 4)

	service.CleanupRealtimeConnections()

	assert.Empty(t, service.ActiveChannels())
	assert.Equal(t, 0, subscriber.activeCount("presence-tickets-E1"))
	assert.Equal(t, 0, subscriber.activeCount("system-tickets-E1"))
	assert.Equal(t, 0, subscriber.activeCount("presence-tickets-E2"))
	assert.Equal(t, 0, subscriber.activeCount("system-tickets-E2"))
}

func TestDisposeRejectsFurtherChannelOpens(t *testing.T) {
	service := newTestService(&fakeEngine{}, newFakeSubscriber())

	service.Dispose()
	failure := service.InitializeRealtimeConnections(context.Background(), "E1")

	require.NotNil(t, failure)
	assert.Equal(t, FailureInternal, failure.Kind)
}

//  SUBSCRIPTIONS

func TestSubscribeToAvailabilityChangesFiresInitialSnapshot(t *testing.T) {
	engine := &fakeEngine{availability: &tickets.Availability{Available: 5, Reserved: 1}}
	subscriber := newFakeSubscriber()
	service := newTestService(engine, subscriber)

	snapshots := make(chan AvailabilitySnapshot, 4)
	unsubscribe, failure := service.SubscribeToAvailabilityChanges(context.Background(), "E1", "T1", func(s AvailabilitySnapshot) {
		snapshots <- s
	})
	require.Nil(t, failure)
	defer unsubscribe()

	// Callback fires immediately with the current counts
	select {
	case initial := <-snapshots:
		assert.Equal(t, 5, initial.Available)
		assert.Equal(t, 1, initial.Reserved)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
}

func TestSubscribeToAvailabilityChangesRequeriesOnMessage(t *testing.T) {
	engine := &fakeEngine{availability: &tickets.Availability{Available: 5}}
	subscriber := newFakeSubscriber()
	service := newTestService(engine, subscriber)

	snapshots := make(chan AvailabilitySnapshot, 4)
	unsubscribe, failure := service.SubscribeToAvailabilityChanges(context.Background(), "E1", "T1", func(s AvailabilitySnapshot) {
		snapshots <- s
	})
	require.Nil(t, failure)
	defer unsubscribe()

	<-snapshots // initial

	engine.mu.Lock()
	engine.availability = &tickets.Availability{Available: 4, Reserved: 1}
	engine.mu.Unlock()

	subscriber.publish("availability-E1-T1", []byte(`{}`))

	select {
	case fresh := <-snapshots:
		assert.Equal(t, 4, fresh.Available)
		assert.Equal(t, 1, fresh.Reserved)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after row change")
	}
}

func TestSubscribeToAvailabilityChangesIndependentSubscriptions(t *testing.T) {
	engine := &fakeEngine{availability: &tickets.Availability{Available: 5}}
	subscriber := newFakeSubscriber()
	service := newTestService(engine, subscriber)

	unsubA, failure := service.SubscribeToAvailabilityChanges(context.Background(), "E1", "T1", func(AvailabilitySnapshot) {})
	require.Nil(t, failure)
	unsubB, failure := service.SubscribeToAvailabilityChanges(context.Background(), "E1", "T1", func(AvailabilitySnapshot) {})
	require.Nil(t, failure)

	// Two subscriptions to the same scope are tracked separately
	require.Len(t, service.ActiveChannels(), 2)

	unsubA()
	assert.Len(t, service.ActiveChannels(), 1)

	unsubB()
	assert.Empty(t, service.ActiveChannels())
}

func TestSubscribeToTicketChangesDecodesEnvelope(t *testing.T) {
	subscriber := newFakeSubscriber()
	service := newTestService(&fakeEngine{}, subscriber)

	updates := make(chan realtime.TicketUpdateMessage, 2)
	unsubscribe, failure := service.SubscribeToTicketChanges(context.Background(), "res-1", func(msg realtime.TicketUpdateMessage) {
		updates <- msg
	})
	require.Nil(t, failure)
	defer unsubscribe()

	payload, err := json.Marshal(realtime.Envelope{
		Event: "ticket-update",
		Payload: realtime.TicketUpdateMessage{
			ReservationID: "res-1",
			Status:        "sold",
			TicketIDs:     []string{"ticket-1"},
		},
	})
	require.NoError(t, err)
	subscriber.publish("ticket-updates-res-1", payload)

	select {
	case msg := <-updates:
		assert.Equal(t, "res-1", msg.ReservationID)
		assert.Equal(t, "sold", msg.Status)
		assert.Equal(t, []string{"ticket-1"}, msg.TicketIDs)
	case <-time.After(time.Second):
		t.Fatal("no ticket update delivered")
	}
}

func TestSubscribeFailureSurfacesTypedFailure(t *testing.T) {
	subscriber := newFakeSubscriber()
	subscriber.subscribeErr = context.DeadlineExceeded
	service := newTestService(&fakeEngine{}, subscriber)

	_, failure := service.SubscribeToAvailabilityChanges(context.Background(), "E1", "T1", func(AvailabilitySnapshot) {})

	require.NotNil(t, failure)
	assert.Equal(t, FailureTimedOut, failure.Kind)
	assert.Empty(t, service.ActiveChannels())
}

func TestPresenceUpdatesDeliversEmittedCounts(t *testing.T) {
	emitter := realtime.NewPresenceEmitter(8)
	cfg := config.ReservationConfig{OperationTimeout: time.Second}
	service := NewService(&fakeEngine{}, newFakeSubscriber(), emitter, nil, cfg)

	updates, unsubscribe := service.PresenceUpdates()
	defer unsubscribe()

	emitter.Emit(realtime.PresenceUpdate{TotalViewers: 3, TotalReserving: 1, Timestamp: time.Now().UnixMilli()})

	select {
	case update := <-updates:
		assert.Equal(t, 3, update.TotalViewers)
		assert.Equal(t, 1, update.TotalReserving)
		assert.NotZero(t, update.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no presence update delivered")
	}
}
