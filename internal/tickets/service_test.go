package tickets

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//  FAKES

type fakeRepo struct {
	mu sync.Mutex

	reserveClaimed  []Ticket
	reserveReleased int64
	reserveErr      error
	lastQuantity    int
	lastExpiresAt   time.Time

	completeTickets []Ticket
	completeErr     error

	releaseHeld  []Ticket
	releaseCount int64
	releaseErr   error

	expiredScopes []ExpiredScope
	expiredErr    error

	counts    *Availability
	countsErr error

	created []Ticket
}

func (f *fakeRepo) CreateTickets(ctx context.Context, tickets []Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, tickets...)
	return nil
}

func (f *fakeRepo) DeleteAvailableByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) error {
	return nil
}

func (f *fakeRepo) CountActiveByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) ReserveAvailable(ctx context.Context, eventID, ticketDefinitionID, reservationID uuid.UUID, quantity int, expiresAt time.Time) ([]Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuantity = quantity
	f.lastExpiresAt = expiresAt
	if f.reserveErr != nil {
		return nil, 0, f.reserveErr
	}
	claimed := make([]Ticket, len(f.reserveClaimed))
	copy(claimed, f.reserveClaimed)
	for i := range claimed {
		claimed[i].EventID = eventID
		claimed[i].TicketDefinitionID = ticketDefinitionID
		rid := reservationID
		claimed[i].ReservationID = &rid
	}
	return claimed, f.reserveReleased, nil
}

func (f *fakeRepo) CompleteReservation(ctx context.Context, reservationID, attendeeID uuid.UUID) ([]Ticket, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completeTickets, nil
}

func (f *fakeRepo) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	if f.releaseErr != nil {
		return 0, f.releaseErr
	}
	return f.releaseCount, nil
}

func (f *fakeRepo) ReleaseExpired(ctx context.Context, now time.Time) ([]ExpiredScope, error) {
	if f.expiredErr != nil {
		return nil, f.expiredErr
	}
	return f.expiredScopes, nil
}

func (f *fakeRepo) GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]Ticket, error) {
	return f.releaseHeld, nil
}

func (f *fakeRepo) CountByStatus(ctx context.Context, eventID, ticketDefinitionID uuid.UUID) (*Availability, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	return f.counts, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return nil, fmt.Errorf("not found")
}

func (f *fakeRepo) GetByEvent(ctx context.Context, eventID uuid.UUID, query TicketListQuery) ([]Ticket, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status TicketStatus) error {
	return nil
}

type mirrorMove struct {
	from     string
	to       string
	quantity int
}

type fakeMirror struct {
	mu          sync.Mutex
	counts      *Availability
	moveErr     error
	moves       []mirrorMove
	seeded      []Availability
	invalidated []string
}

func (f *fakeMirror) GetCounts(ctx context.Context, eventID, ticketDefinitionID string) (*Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, nil
}

func (f *fakeMirror) SeedCounts(ctx context.Context, eventID, ticketDefinitionID string, availability *Availability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeded = append(f.seeded, *availability)
	return nil
}

func (f *fakeMirror) MoveCounts(ctx context.Context, eventID, ticketDefinitionID, from, to string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, mirrorMove{from: from, to: to, quantity: quantity})
	return nil
}

func (f *fakeMirror) InvalidateCounts(ctx context.Context, eventID, ticketDefinitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, eventID+"/"+ticketDefinitionID)
	return nil
}

type notifiedChange struct {
	reservationID string
	status        string
}

type fakeChangeNotifier struct {
	mu           sync.Mutex
	availability int
	reservations []notifiedChange
}

func (f *fakeChangeNotifier) NotifyAvailabilityChange(ctx context.Context, eventID, ticketDefinitionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availability++
}

func (f *fakeChangeNotifier) NotifyReservationChange(ctx context.Context, reservationID, status string, ticketIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, notifiedChange{reservationID: reservationID, status: status})
}

func availableTickets(n int) []Ticket {
	rows := make([]Ticket, n)
	for i := range rows {
		rows[i] = Ticket{ID: uuid.New(), Status: TicketStatusAvailable}
	}
	return rows
}

//  RESERVE

func TestReserveTicketsSharesOneReservation(t *testing.T) {
	repo := &fakeRepo{reserveClaimed: availableTickets(3)}
	svc := NewService(repo, nil)

	rows, err := svc.ReserveTickets(context.Background(), uuid.New(), uuid.New(), 3, 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	for _, row := range rows {
		assert.Equal(t, first.ReservationID, row.ReservationID)
		assert.Equal(t, first.ExpiresAt, row.ExpiresAt)
	}
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), first.ExpiresAt, time.Second)
}

func TestReserveTicketsRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	_, err := svc.ReserveTickets(context.Background(), uuid.New(), uuid.New(), 0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReserveTicketsInsufficientAvailability(t *testing.T) {
	repo := &fakeRepo{reserveErr: ErrInsufficientAvailability}
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, mirror)
	svc.SetNotifier(notifier)

	_, err := svc.ReserveTickets(context.Background(), uuid.New(), uuid.New(), 5, time.Minute)

	assert.ErrorIs(t, err, ErrInsufficientAvailability)
	assert.Empty(t, mirror.moves)
	assert.Zero(t, notifier.availability)
}

func TestReserveTicketsMirrorsClaimAndLazyRelease(t *testing.T) {
	repo := &fakeRepo{reserveClaimed: availableTickets(2), reserveReleased: 3}
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, mirror)
	svc.SetNotifier(notifier)

	rows, err := svc.ReserveTickets(context.Background(), uuid.New(), uuid.New(), 2, time.Minute)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Expired holds released inside the claim transaction move back to
	// available before the new claim is accounted for
	require.Len(t, mirror.moves, 2)
	assert.Equal(t, mirrorMove{from: "reserved", to: "available", quantity: 3}, mirror.moves[0])
	assert.Equal(t, mirrorMove{from: "available", to: "reserved", quantity: 2}, mirror.moves[1])

	assert.Equal(t, 1, notifier.availability)
	require.Len(t, notifier.reservations, 1)
	assert.Equal(t, string(TicketStatusReserved), notifier.reservations[0].status)
}

func TestReserveTicketsSkipsReleaseMoveWhenNothingExpired(t *testing.T) {
	repo := &fakeRepo{reserveClaimed: availableTickets(1)}
	mirror := &fakeMirror{}
	svc := NewService(repo, mirror)

	_, err := svc.ReserveTickets(context.Background(), uuid.New(), uuid.New(), 1, time.Minute)
	require.NoError(t, err)

	require.Len(t, mirror.moves, 1)
	assert.Equal(t, mirrorMove{from: "available", to: "reserved", quantity: 1}, mirror.moves[0])
}

//  COMPLETE

func soldTickets(n int, eventID, definitionID uuid.UUID) []Ticket {
	rows := make([]Ticket, n)
	for i := range rows {
		rows[i] = Ticket{
			ID:                 uuid.New(),
			EventID:            eventID,
			TicketDefinitionID: definitionID,
			Status:             TicketStatusSold,
		}
	}
	return rows
}

func TestCompleteReservationMovesMirrorToSold(t *testing.T) {
	eventID := uuid.New()
	definitionID := uuid.New()
	repo := &fakeRepo{completeTickets: soldTickets(2, eventID, definitionID)}
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, mirror)
	svc.SetNotifier(notifier)

	ids, err := svc.CompleteReservation(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.Len(t, mirror.moves, 1)
	assert.Equal(t, mirrorMove{from: "reserved", to: "sold", quantity: 2}, mirror.moves[0])
	require.Len(t, notifier.reservations, 1)
	assert.Equal(t, string(TicketStatusSold), notifier.reservations[0].status)
}

func TestCompleteReservationExpiredNotifiesRelease(t *testing.T) {
	repo := &fakeRepo{completeErr: ErrReservationExpired}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, &fakeMirror{})
	svc.SetNotifier(notifier)

	_, err := svc.CompleteReservation(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, ErrReservationExpired)
	require.Len(t, notifier.reservations, 1)
	assert.Equal(t, string(TicketStatusAvailable), notifier.reservations[0].status)
}

//  RELEASE

func TestReleaseReservationMirrorsAndNotifies(t *testing.T) {
	eventID := uuid.New()
	definitionID := uuid.New()
	repo := &fakeRepo{
		releaseHeld:  soldTickets(2, eventID, definitionID),
		releaseCount: 2,
	}
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, mirror)
	svc.SetNotifier(notifier)

	released, err := svc.ReleaseReservation(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	require.Len(t, mirror.moves, 1)
	assert.Equal(t, mirrorMove{from: "reserved", to: "available", quantity: 2}, mirror.moves[0])
	assert.Equal(t, 1, notifier.availability)
}

//  EXPIRY SWEEP

func TestSweepExpiredInvalidatesTouchedScopes(t *testing.T) {
	scopeA := ExpiredScope{EventID: uuid.New(), TicketDefinitionID: uuid.New(), Released: 2}
	scopeB := ExpiredScope{EventID: uuid.New(), TicketDefinitionID: uuid.New(), Released: 1}
	repo := &fakeRepo{expiredScopes: []ExpiredScope{scopeA, scopeB}}
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(repo, mirror).(*service)
	svc.SetNotifier(notifier)

	svc.sweepExpired(context.Background())

	// Each touched scope drops its mirror so the next read reseeds
	require.Len(t, mirror.invalidated, 2)
	assert.Equal(t, scopeA.EventID.String()+"/"+scopeA.TicketDefinitionID.String(), mirror.invalidated[0])
	assert.Equal(t, scopeB.EventID.String()+"/"+scopeB.TicketDefinitionID.String(), mirror.invalidated[1])
	assert.Equal(t, 2, notifier.availability)
}

func TestSweepExpiredNoScopesIsQuiet(t *testing.T) {
	mirror := &fakeMirror{}
	notifier := &fakeChangeNotifier{}
	svc := NewService(&fakeRepo{}, mirror).(*service)
	svc.SetNotifier(notifier)

	svc.sweepExpired(context.Background())

	assert.Empty(t, mirror.invalidated)
	assert.Zero(t, notifier.availability)
}

//  AVAILABILITY

func TestGetTicketAvailabilityPrefersMirror(t *testing.T) {
	repo := &fakeRepo{counts: &Availability{Available: 1}}
	mirror := &fakeMirror{counts: &Availability{Available: 9, Reserved: 3, Sold: 2}}
	svc := NewService(repo, mirror)

	counts, err := svc.GetTicketAvailability(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 9, counts.Available)
	assert.Equal(t, 3, counts.Reserved)
	assert.Empty(t, mirror.seeded)
}

func TestGetTicketAvailabilityMissSeedsFromPostgres(t *testing.T) {
	repo := &fakeRepo{counts: &Availability{Available: 4, Reserved: 1, Sold: 5}}
	mirror := &fakeMirror{}
	svc := NewService(repo, mirror)

	counts, err := svc.GetTicketAvailability(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Available)

	require.Len(t, mirror.seeded, 1)
	assert.Equal(t, Availability{Available: 4, Reserved: 1, Sold: 5}, mirror.seeded[0])
}

//  PROVISIONING

func TestProvisionTicketsCreatesAvailableRows(t *testing.T) {
	repo := &fakeRepo{}
	mirror := &fakeMirror{}
	svc := NewService(repo, mirror)

	eventID := uuid.New()
	definitionID := uuid.New()
	require.NoError(t, svc.ProvisionTickets(context.Background(), eventID, definitionID, 3, 45.50))

	require.Len(t, repo.created, 3)
	for _, row := range repo.created {
		assert.Equal(t, TicketStatusAvailable, row.Status)
		assert.Equal(t, eventID, row.EventID)
		assert.Equal(t, 45.50, row.Price)
	}
	assert.Len(t, mirror.invalidated, 1)
}
