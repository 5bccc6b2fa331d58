package registrations

import (
	"context"
	"testing"
	"time"

	"lodgetix/internal/reservations"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//  FAKES

type fakeRepo struct {
	registration *Registration

	updatedStatus   Status
	assignedTickets []uuid.UUID
}

func (f *fakeRepo) Create(ctx context.Context, registration *Registration) error {
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return f.registration, nil
}

func (f *fakeRepo) GetByReference(ctx context.Context, reference string) (*Registration, error) {
	return f.registration, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, stampedAt *time.Time) error {
	f.updatedStatus = status
	return nil
}

func (f *fakeRepo) AttachReservation(ctx context.Context, id uuid.UUID, reservationID uuid.UUID, totalPrice float64) error {
	return nil
}

func (f *fakeRepo) AddAttendee(ctx context.Context, attendee *Attendee) error {
	return nil
}

func (f *fakeRepo) GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]Attendee, error) {
	return f.registration.Attendees, nil
}

func (f *fakeRepo) AssignTickets(ctx context.Context, registrationID uuid.UUID, ticketIDs []uuid.UUID) error {
	f.assignedTickets = ticketIDs
	return nil
}

func (f *fakeRepo) GetUserRegistrations(ctx context.Context, userID uuid.UUID, query RegistrationListQuery) ([]Registration, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]Registration, error) {
	return nil, nil
}

type fakeCompleter struct {
	result *reservations.CompleteResult

	completeClientID   string
	completeAttendeeID string
	clearedIDs         []string
}

func (f *fakeCompleter) CompleteReservation(ctx context.Context, clientID, reservationID, attendeeID string) *reservations.CompleteResult {
	f.completeClientID = clientID
	f.completeAttendeeID = attendeeID
	return f.result
}

func (f *fakeCompleter) ClearCurrentReservation(ctx context.Context, clientID string) *reservations.Failure {
	f.clearedIDs = append(f.clearedIDs, clientID)
	return nil
}

func pendingRegistration(userID uuid.UUID) *Registration {
	reservationID := uuid.New()
	return &Registration{
		ID:            uuid.New(),
		UserID:        userID,
		EventID:       uuid.New(),
		Type:          TypeIndividual,
		Status:        StatusPending,
		Reference:     "LTX-20260831-ABCDEF",
		ReservationID: &reservationID,
		Attendees: []Attendee{
			{ID: uuid.New(), Type: AttendeeGuest},
			{ID: uuid.New(), Type: AttendeeMason, IsPrimary: true},
		},
	}
}

func successResult(ticketCount int) *reservations.CompleteResult {
	ids := make([]string, ticketCount)
	for i := range ids {
		ids[i] = uuid.New().String()
	}
	return &reservations.CompleteResult{Success: true, TicketIDs: ids}
}

//  CONFIRM

func TestConfirmRegistrationCompletesUnderUserIdentity(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{registration: pendingRegistration(userID)}
	completer := &fakeCompleter{result: successResult(2)}
	svc := NewService(repo, completer, nil)

	confirmed, err := svc.ConfirmRegistration(context.Background(), repo.registration.ID, userID, "")
	require.NoError(t, err)
	require.NotNil(t, confirmed)

	assert.Equal(t, userID.String(), completer.completeClientID)
	// The primary attendee receives the completion, wherever it sits
	assert.Equal(t, repo.registration.Attendees[1].ID.String(), completer.completeAttendeeID)
	assert.Equal(t, StatusConfirmed, repo.updatedStatus)
	assert.Len(t, repo.assignedTickets, 2)
}

func TestConfirmRegistrationClearsWizardSessionCache(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{registration: pendingRegistration(userID)}
	completer := &fakeCompleter{result: successResult(1)}
	svc := NewService(repo, completer, nil)

	_, err := svc.ConfirmRegistration(context.Background(), repo.registration.ID, userID, "wizard-session-9")
	require.NoError(t, err)

	// The hold may be cached under the page-session header identity when
	// the reserve happened before sign-in; that copy is cleared too
	assert.Equal(t, []string{"wizard-session-9"}, completer.clearedIDs)
}

func TestConfirmRegistrationSkipsClearWhenIdentityMatches(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{registration: pendingRegistration(userID)}
	completer := &fakeCompleter{result: successResult(1)}
	svc := NewService(repo, completer, nil)

	_, err := svc.ConfirmRegistration(context.Background(), repo.registration.ID, userID, userID.String())
	require.NoError(t, err)

	assert.Empty(t, completer.clearedIDs)
}

func TestConfirmRegistrationFailureLeavesCacheAlone(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{registration: pendingRegistration(userID)}
	completer := &fakeCompleter{result: &reservations.CompleteResult{
		Failure: &reservations.Failure{Kind: reservations.FailureExpired, Message: "reservation has expired"},
	}}
	svc := NewService(repo, completer, nil)

	_, err := svc.ConfirmRegistration(context.Background(), repo.registration.ID, userID, "wizard-session-9")

	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.Empty(t, completer.clearedIDs)
	assert.Empty(t, repo.assignedTickets)
}

func TestConfirmRegistrationRejectsForeignUser(t *testing.T) {
	repo := &fakeRepo{registration: pendingRegistration(uuid.New())}
	completer := &fakeCompleter{result: successResult(1)}
	svc := NewService(repo, completer, nil)

	_, err := svc.ConfirmRegistration(context.Background(), repo.registration.ID, uuid.New(), "")

	assert.ErrorIs(t, err, ErrNotOwner)
}
