package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lodgetix/internal/events"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrEventNotBookable = errors.New("event is not accepting reservations")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrTicketNotSold    = errors.New("only sold tickets can be checked in")
)

// RowChangeNotifier receives change events after ticket rows mutate.
// Implemented by the realtime layer; the engine publishes fire-and-forget.
type RowChangeNotifier interface {
	NotifyAvailabilityChange(ctx context.Context, eventID, ticketDefinitionID string)
	NotifyReservationChange(ctx context.Context, reservationID, status string, ticketIDs []string)
}

// CounterMirror keeps the Redis availability counters in step with row
// mutations. Implemented by AtomicCounterOperations.
type CounterMirror interface {
	GetCounts(ctx context.Context, eventID, ticketDefinitionID string) (*Availability, error)
	SeedCounts(ctx context.Context, eventID, ticketDefinitionID string, availability *Availability) error
	MoveCounts(ctx context.Context, eventID, ticketDefinitionID, from, to string, quantity int) error
	InvalidateCounts(ctx context.Context, eventID, ticketDefinitionID string) error
}

type Service interface {
	SetNotifier(notifier RowChangeNotifier)
	SetEventService(eventService events.Service)

	// Reservation engine
	ReserveTickets(ctx context.Context, eventID, ticketDefinitionID uuid.UUID, quantity int, holdDuration time.Duration) ([]ReservedTicket, error)
	CompleteReservation(ctx context.Context, reservationID, attendeeID uuid.UUID) ([]string, error)
	ReleaseReservation(ctx context.Context, reservationID uuid.UUID) (int, error)
	GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID uuid.UUID) (*Availability, error)

	// Expiry sweeper
	StartExpirySweeper(ctx context.Context, interval time.Duration)
	StopExpirySweeper()

	// Provisioning (implements the packages module's TicketProvisioner)
	ProvisionTickets(ctx context.Context, eventID, ticketDefinitionID uuid.UUID, count int, price float64) error
	HasActiveTickets(ctx context.Context, ticketDefinitionID uuid.UUID) (bool, error)
	RemoveAvailableTickets(ctx context.Context, ticketDefinitionID uuid.UUID) error

	// Admin
	GetTicketByID(ctx context.Context, id uuid.UUID) (*TicketResponse, error)
	GetTicketsByEvent(ctx context.Context, eventID uuid.UUID, query TicketListQuery) (*PaginatedTickets, error)
	CheckInTicket(ctx context.Context, id uuid.UUID) (*TicketResponse, error)
}

type service struct {
	repo         Repository
	counters     CounterMirror
	notifier     RowChangeNotifier
	eventService events.Service

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
}

func NewService(repo Repository, counters CounterMirror) Service {
	return &service{
		repo:     repo,
		counters: counters,
	}
}

func (s *service) SetNotifier(notifier RowChangeNotifier) {
	s.notifier = notifier
}

func (s *service) SetEventService(eventService events.Service) {
	s.eventService = eventService
}

//  RESERVATION ENGINE

func (s *service) ReserveTickets(ctx context.Context, eventID, ticketDefinitionID uuid.UUID, quantity int, holdDuration time.Duration) ([]ReservedTicket, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// Gate on event status when the events service is wired
	if s.eventService != nil {
		bookable, err := s.eventService.CanAcceptRegistrations(eventID)
		if err != nil && !errors.Is(err, events.ErrEventNotFound) {
			return nil, fmt.Errorf("failed to check event: %w", err)
		}
		if err == nil && !bookable {
			return nil, ErrEventNotBookable
		}
	}

	reservationID := uuid.New()
	expiresAt := time.Now().Add(holdDuration)

	claimed, lazilyReleased, err := s.repo.ReserveAvailable(ctx, eventID, ticketDefinitionID, reservationID, quantity, expiresAt)
	if err != nil {
		return nil, err
	}

	// Expired holds released inside the claim transaction must flow back
	// through the mirror too, or reserved inflates until the TTL lapses
	s.mirrorMove(ctx, eventID.String(), ticketDefinitionID.String(), "reserved", "available", int(lazilyReleased))
	s.mirrorMove(ctx, eventID.String(), ticketDefinitionID.String(), "available", "reserved", len(claimed))

	reserved := make([]ReservedTicket, len(claimed))
	ticketIDs := make([]string, len(claimed))
	for i, t := range claimed {
		reserved[i] = ReservedTicket{
			TicketID:      t.ID.String(),
			ReservationID: reservationID.String(),
			ExpiresAt:     expiresAt,
		}
		ticketIDs[i] = t.ID.String()
	}

	logger.GetDefault().LogTicketsReserved(ctx, reservationID.String(), eventID.String(), len(claimed))

	if s.notifier != nil {
		s.notifier.NotifyAvailabilityChange(ctx, eventID.String(), ticketDefinitionID.String())
		s.notifier.NotifyReservationChange(ctx, reservationID.String(), string(TicketStatusReserved), ticketIDs)
	}

	return reserved, nil
}

func (s *service) CompleteReservation(ctx context.Context, reservationID, attendeeID uuid.UUID) ([]string, error) {
	completed, err := s.repo.CompleteReservation(ctx, reservationID, attendeeID)
	if err != nil {
		if errors.Is(err, ErrReservationExpired) && s.notifier != nil {
			s.notifier.NotifyReservationChange(ctx, reservationID.String(), string(TicketStatusAvailable), nil)
		}
		return nil, err
	}

	ticketIDs := make([]string, len(completed))
	for i, t := range completed {
		ticketIDs[i] = t.ID.String()
	}

	if len(completed) > 0 {
		eventID := completed[0].EventID.String()
		definitionID := completed[0].TicketDefinitionID.String()
		s.mirrorMove(ctx, eventID, definitionID, "reserved", "sold", len(completed))

		if s.notifier != nil {
			s.notifier.NotifyAvailabilityChange(ctx, eventID, definitionID)
			s.notifier.NotifyReservationChange(ctx, reservationID.String(), string(TicketStatusSold), ticketIDs)
		}
	}

	logger.GetDefault().LogReservationCompleted(ctx, reservationID.String(), attendeeID.String())

	return ticketIDs, nil
}

func (s *service) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) (int, error) {
	// Snapshot scope before release so the mirror and notifier get it
	held, err := s.repo.GetByReservationID(ctx, reservationID)
	if err != nil {
		return 0, err
	}

	released, err := s.repo.ReleaseReservation(ctx, reservationID)
	if err != nil {
		return 0, err
	}

	if released > 0 && len(held) > 0 {
		eventID := held[0].EventID.String()
		definitionID := held[0].TicketDefinitionID.String()
		s.mirrorMove(ctx, eventID, definitionID, "reserved", "available", int(released))

		if s.notifier != nil {
			s.notifier.NotifyAvailabilityChange(ctx, eventID, definitionID)
			s.notifier.NotifyReservationChange(ctx, reservationID.String(), string(TicketStatusAvailable), nil)
		}
	}

	return int(released), nil
}

// GetTicketAvailability reads the Redis mirror first; on a miss it counts
// in Postgres and reseeds the mirror.
func (s *service) GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID uuid.UUID) (*Availability, error) {
	if s.counters != nil {
		mirrored, err := s.counters.GetCounts(ctx, eventID.String(), ticketDefinitionID.String())
		if err == nil && mirrored != nil {
			return mirrored, nil
		}
	}

	availability, err := s.repo.CountByStatus(ctx, eventID, ticketDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	if s.counters != nil {
		if err := s.counters.SeedCounts(ctx, eventID.String(), ticketDefinitionID.String(), availability); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to seed counts mirror")
		}
	}

	return availability, nil
}

func (s *service) mirrorMove(ctx context.Context, eventID, ticketDefinitionID, from, to string, quantity int) {
	if s.counters == nil || quantity == 0 {
		return
	}
	if err := s.counters.MoveCounts(ctx, eventID, ticketDefinitionID, from, to, quantity); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to update counts mirror")
	}
}

//  EXPIRY SWEEPER

// StartExpirySweeper periodically releases expired holds across all
// events. The per-scope lazy release in ReserveAvailable covers hot
// paths; this sweep covers cold ones.
func (s *service) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel

	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.sweepExpired(sweepCtx)
			}
		}
	}()
}

// sweepExpired releases every expired hold and drops the counts mirror
// for each touched scope so the next read reseeds from Postgres
func (s *service) sweepExpired(ctx context.Context) {
	scopes, err := s.repo.ReleaseExpired(ctx, time.Now())
	if err != nil {
		logger.GetDefault().WithError(err).Error("expiry sweep failed")
		return
	}

	var total int64
	for _, scope := range scopes {
		total += scope.Released
		eventID := scope.EventID.String()
		definitionID := scope.TicketDefinitionID.String()

		if s.counters != nil {
			if err := s.counters.InvalidateCounts(ctx, eventID, definitionID); err != nil {
				logger.GetDefault().WithError(err).Warn("failed to invalidate counts mirror after sweep",
					"event_id", eventID, "ticket_definition_id", definitionID)
			}
		}
		if s.notifier != nil {
			s.notifier.NotifyAvailabilityChange(ctx, eventID, definitionID)
		}
	}

	if total > 0 {
		logger.GetDefault().LogReservationExpired(ctx, "sweep", int(total))
	}
}

func (s *service) StopExpirySweeper() {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	s.sweepWG.Wait()
}

//  PROVISIONING

func (s *service) ProvisionTickets(ctx context.Context, eventID, ticketDefinitionID uuid.UUID, count int, price float64) error {
	if count <= 0 {
		return ErrInvalidQuantity
	}

	tickets := make([]Ticket, count)
	for i := range tickets {
		tickets[i] = Ticket{
			ID:                 uuid.New(),
			EventID:            eventID,
			TicketDefinitionID: ticketDefinitionID,
			Status:             TicketStatusAvailable,
			Price:              price,
		}
	}

	if err := s.repo.CreateTickets(ctx, tickets); err != nil {
		return fmt.Errorf("failed to provision tickets: %w", err)
	}

	if s.counters != nil {
		if err := s.counters.InvalidateCounts(ctx, eventID.String(), ticketDefinitionID.String()); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to invalidate counts mirror after provisioning")
		}
	}

	return nil
}

func (s *service) HasActiveTickets(ctx context.Context, ticketDefinitionID uuid.UUID) (bool, error) {
	count, err := s.repo.CountActiveByDefinition(ctx, ticketDefinitionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *service) RemoveAvailableTickets(ctx context.Context, ticketDefinitionID uuid.UUID) error {
	return s.repo.DeleteAvailableByDefinition(ctx, ticketDefinitionID)
}

//  ADMIN

func (s *service) GetTicketByID(ctx context.Context, id uuid.UUID) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	response := ticket.ToResponse()
	return &response, nil
}

func (s *service) GetTicketsByEvent(ctx context.Context, eventID uuid.UUID, query TicketListQuery) (*PaginatedTickets, error) {
	tickets, totalCount, err := s.repo.GetByEvent(ctx, eventID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}

	responses := make([]TicketResponse, len(tickets))
	for i, t := range tickets {
		responses[i] = t.ToResponse()
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 50
	}

	return &PaginatedTickets{
		Tickets:    responses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
	}, nil
}

// CheckInTicket marks a sold ticket as used at the door
func (s *service) CheckInTicket(ctx context.Context, id uuid.UUID) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrTicketNotFound
	}

	if ticket.Status != TicketStatusSold {
		return nil, ErrTicketNotSold
	}

	if err := s.repo.UpdateStatus(ctx, id, TicketStatusUsed); err != nil {
		return nil, fmt.Errorf("failed to check in ticket: %w", err)
	}

	ticket.Status = TicketStatusUsed
	response := ticket.ToResponse()
	return &response, nil
}
