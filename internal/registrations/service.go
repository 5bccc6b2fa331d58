package registrations

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"lodgetix/internal/events"
	"lodgetix/internal/reservations"
	"lodgetix/internal/tickets"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrNotOwner             = errors.New("registration does not belong to user")
	ErrInvalidTransition    = errors.New("registration cannot move to the requested status")
	ErrNoAttendees          = errors.New("registration has no attendees")
	ErrNoReservation        = errors.New("registration has no attached reservation")
	ErrLodgeDetailsRequired = errors.New("lodge name and number are required for this flow")
	ErrEventNotOpen         = errors.New("event is not open for registration")
	ErrCompletionFailed     = errors.New("reservation completion failed")
)

// EventPublisher pushes registration lifecycle events to the message
// broker. Implemented by the notifications service; injected via setter
// to avoid a package cycle.
type EventPublisher interface {
	PublishRegistrationConfirmed(ctx context.Context, registration *Registration) error
	PublishRegistrationCancelled(ctx context.Context, registration *Registration) error
}

// ReservationCompleter is the slice of the reservation orchestrator the
// confirmation flow uses
type ReservationCompleter interface {
	CompleteReservation(ctx context.Context, clientID, reservationID, attendeeID string) *reservations.CompleteResult
	ClearCurrentReservation(ctx context.Context, clientID string) *reservations.Failure
}

// Service defines the contract for registration business logic
type Service interface {
	CreateRegistration(ctx context.Context, userID uuid.UUID, req CreateRegistrationRequest) (*Registration, error)
	AddAttendee(ctx context.Context, registrationID, userID uuid.UUID, req AddAttendeeRequest) (*Attendee, error)
	AttachReservation(ctx context.Context, registrationID, userID uuid.UUID, req AttachReservationRequest) error
	ConfirmRegistration(ctx context.Context, registrationID, userID uuid.UUID, clientID string) (*Registration, error)
	CancelRegistration(ctx context.Context, registrationID, userID uuid.UUID) error

	GetRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error)
	GetByReference(ctx context.Context, reference string) (*Registration, error)
	GetUserRegistrations(ctx context.Context, userID uuid.UUID, query RegistrationListQuery) (*PaginatedRegistrations, error)
	GetEventRegistrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error)

	SetEventService(eventService events.Service)
	SetPublisher(publisher EventPublisher)
}

type service struct {
	repo          Repository
	orchestrator  ReservationCompleter
	ticketService tickets.Service
	eventService  events.Service
	publisher     EventPublisher
}

func NewService(repo Repository, orchestrator ReservationCompleter, ticketService tickets.Service) Service {
	return &service{
		repo:          repo,
		orchestrator:  orchestrator,
		ticketService: ticketService,
	}
}

func (s *service) SetEventService(eventService events.Service) {
	s.eventService = eventService
}

func (s *service) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// CreateRegistration opens a draft registration for the wizard
func (s *service) CreateRegistration(ctx context.Context, userID uuid.UUID, req CreateRegistrationRequest) (*Registration, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event ID: %w", err)
	}

	registrationType := RegistrationType(req.Type)
	if !registrationType.IsValid() {
		return nil, fmt.Errorf("invalid registration type %q", req.Type)
	}

	// Lodge and delegation flows register on behalf of a lodge
	if registrationType != TypeIndividual && (req.LodgeName == "" || req.LodgeNumber == "") {
		return nil, ErrLodgeDetailsRequired
	}

	if s.eventService != nil {
		bookable, err := s.eventService.CanAcceptRegistrations(eventID)
		if err != nil && !errors.Is(err, events.ErrEventNotFound) {
			return nil, err
		}
		if err == nil && !bookable {
			return nil, ErrEventNotOpen
		}
	}

	reference, err := generateReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate registration reference: %w", err)
	}

	registration := &Registration{
		UserID:      userID,
		EventID:     eventID,
		Type:        registrationType,
		Status:      StatusDraft,
		Reference:   reference,
		LodgeName:   req.LodgeName,
		LodgeNumber: req.LodgeNumber,
	}

	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	logger.GetDefault().Info("registration created",
		"registration_id", registration.ID.String(),
		"reference", registration.Reference,
		"type", string(registration.Type))

	return registration, nil
}

// AddAttendee appends a person to the registration. The first attendee
// moves the registration from draft to pending.
func (s *service) AddAttendee(ctx context.Context, registrationID, userID uuid.UUID, req AddAttendeeRequest) (*Attendee, error) {
	registration, err := s.getOwned(ctx, registrationID, userID)
	if err != nil {
		return nil, err
	}

	if registration.Status != StatusDraft && registration.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	attendeeType := AttendeeType(req.Type)
	if !attendeeType.IsValid() {
		return nil, fmt.Errorf("invalid attendee type %q", req.Type)
	}
	if attendeeType == AttendeeMason && req.LodgeName == "" {
		return nil, errors.New("lodge name is required for mason attendees")
	}

	attendee := &Attendee{
		RegistrationID:      registrationID,
		Type:                attendeeType,
		IsPrimary:           req.IsPrimary || len(registration.Attendees) == 0,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		LodgeName:           req.LodgeName,
		LodgeNumber:         req.LodgeNumber,
		Rank:                req.Rank,
		DietaryRequirements: req.DietaryRequirements,
		SpecialNeeds:        req.SpecialNeeds,
	}

	if err := s.repo.AddAttendee(ctx, attendee); err != nil {
		return nil, fmt.Errorf("failed to add attendee: %w", err)
	}

	if registration.Status == StatusDraft {
		if err := s.repo.UpdateStatus(ctx, registrationID, StatusPending, nil); err != nil {
			return nil, fmt.Errorf("failed to advance registration: %w", err)
		}
	}

	return attendee, nil
}

// AttachReservation links the ticket hold created by the wizard to the
// registration so confirmation can complete it
func (s *service) AttachReservation(ctx context.Context, registrationID, userID uuid.UUID, req AttachReservationRequest) error {
	registration, err := s.getOwned(ctx, registrationID, userID)
	if err != nil {
		return err
	}

	if registration.Status != StatusDraft && registration.Status != StatusPending {
		return ErrInvalidTransition
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		return fmt.Errorf("invalid reservation ID: %w", err)
	}

	return s.repo.AttachReservation(ctx, registrationID, reservationID, req.TotalPrice)
}

// ConfirmRegistration completes the attached reservation and assigns the
// resulting tickets to attendees, primary first. clientID is the wizard's
// page-session identity; the hold may be cached under it when the reserve
// happened before sign-in.
func (s *service) ConfirmRegistration(ctx context.Context, registrationID, userID uuid.UUID, clientID string) (*Registration, error) {
	registration, err := s.getOwned(ctx, registrationID, userID)
	if err != nil {
		return nil, err
	}

	if !registration.Status.CanTransitionTo(StatusConfirmed) {
		return nil, ErrInvalidTransition
	}
	if registration.ReservationID == nil {
		return nil, ErrNoReservation
	}
	if len(registration.Attendees) == 0 {
		return nil, ErrNoAttendees
	}

	primary := registration.Attendees[0]
	for _, attendee := range registration.Attendees {
		if attendee.IsPrimary {
			primary = attendee
			break
		}
	}

	result := s.orchestrator.CompleteReservation(ctx, userID.String(),
		registration.ReservationID.String(), primary.ID.String())
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrCompletionFailed, result.Failure.Message)
	}

	// The reserve may have been cached under the page-session identity
	// rather than the user ID; clear that copy too
	if clientID != "" && clientID != userID.String() {
		if failure := s.orchestrator.ClearCurrentReservation(ctx, clientID); failure != nil {
			logger.GetDefault().Warn("failed to clear cached reservation for wizard session",
				"client_id", clientID, "kind", string(failure.Kind))
		}
	}

	ticketIDs := make([]uuid.UUID, 0, len(result.TicketIDs))
	for _, raw := range result.TicketIDs {
		ticketID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("engine returned malformed ticket ID %q: %w", raw, err)
		}
		ticketIDs = append(ticketIDs, ticketID)
	}

	if err := s.repo.AssignTickets(ctx, registrationID, ticketIDs); err != nil {
		return nil, fmt.Errorf("failed to assign tickets: %w", err)
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, registrationID, StatusConfirmed, &now); err != nil {
		return nil, fmt.Errorf("failed to confirm registration: %w", err)
	}

	confirmed, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	logger.GetDefault().Info("registration confirmed",
		"registration_id", registrationID.String(),
		"reference", confirmed.Reference,
		"tickets", len(ticketIDs))

	if s.publisher != nil {
		if err := s.publisher.PublishRegistrationConfirmed(ctx, confirmed); err != nil {
			// Confirmation stands even if the broker is down
			logger.GetDefault().WithError(err).Warn("failed to publish confirmation",
				"registration_id", registrationID.String())
		}
	}

	return confirmed, nil
}

// CancelRegistration cancels a draft or pending registration and releases
// any attached hold
func (s *service) CancelRegistration(ctx context.Context, registrationID, userID uuid.UUID) error {
	registration, err := s.getOwned(ctx, registrationID, userID)
	if err != nil {
		return err
	}

	if !registration.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	if registration.ReservationID != nil {
		if _, err := s.ticketService.ReleaseReservation(ctx, *registration.ReservationID); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to release reservation on cancel",
				"registration_id", registrationID.String())
		}
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, registrationID, StatusCancelled, &now); err != nil {
		return fmt.Errorf("failed to cancel registration: %w", err)
	}

	if s.publisher != nil {
		registration.Status = StatusCancelled
		registration.CancelledAt = &now
		if err := s.publisher.PublishRegistrationCancelled(ctx, registration); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to publish cancellation",
				"registration_id", registrationID.String())
		}
	}

	return nil
}

func (s *service) GetRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error) {
	registration, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return registration, nil
}

func (s *service) GetByReference(ctx context.Context, reference string) (*Registration, error) {
	registration, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return registration, nil
}

func (s *service) GetUserRegistrations(ctx context.Context, userID uuid.UUID, query RegistrationListQuery) (*PaginatedRegistrations, error) {
	registrations, totalCount, err := s.repo.GetUserRegistrations(ctx, userID, query)
	if err != nil {
		return nil, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	return &PaginatedRegistrations{
		Registrations: registrations,
		TotalCount:    totalCount,
		Page:          query.Page,
		Limit:         query.Limit,
		TotalPages:    CalculateTotalPages(totalCount, query.Limit),
	}, nil
}

func (s *service) GetEventRegistrations(ctx context.Context, eventID uuid.UUID) ([]Registration, error) {
	return s.repo.GetByEventID(ctx, eventID)
}

func (s *service) getOwned(ctx context.Context, registrationID, userID uuid.UUID) (*Registration, error) {
	registration, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	if registration.UserID != userID {
		return nil, ErrNotOwner
	}
	return registration, nil
}

// generateReference builds a human-quotable registration reference in
// the form LTX-20260831-KXQZPA
func generateReference() (string, error) {
	timestamp := time.Now().Format("20060102")

	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("LTX-%s-%s", timestamp, string(randomPart)), nil
}
