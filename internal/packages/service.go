package packages

import (
	"context"
	"errors"
	"fmt"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/cache"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
)

var ErrDefinitionHasSoldTickets = errors.New("ticket definition has sold or reserved tickets")

// TicketProvisioner creates and removes the ticket rows backing a
// definition. Implemented by the ticket engine; kept as an interface
// to avoid a circular dependency.
type TicketProvisioner interface {
	ProvisionTickets(ctx context.Context, eventID, ticketDefinitionID uuid.UUID, count int, price float64) error
	HasActiveTickets(ctx context.Context, ticketDefinitionID uuid.UUID) (bool, error)
	RemoveAvailableTickets(ctx context.Context, ticketDefinitionID uuid.UUID) error
}

type Service interface {
	SetCacheService(cacheService cache.Service)
	SetTicketProvisioner(provisioner TicketProvisioner)

	CreateTicketDefinition(ctx context.Context, req CreateTicketDefinitionRequest) (*TicketDefinitionResponse, error)
	GetTicketDefinition(ctx context.Context, id uuid.UUID) (*TicketDefinitionResponse, error)
	GetTicketDefinitionsByEvent(ctx context.Context, eventID uuid.UUID) ([]TicketDefinitionResponse, error)
	UpdateTicketDefinition(ctx context.Context, id uuid.UUID, req UpdateTicketDefinitionRequest) (*TicketDefinitionResponse, error)
	DeleteTicketDefinition(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo         Repository
	cacheService cache.Service
	provisioner  TicketProvisioner
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) SetTicketProvisioner(provisioner TicketProvisioner) {
	s.provisioner = provisioner
}

func (s *service) invalidatePackageCache(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_PACKAGES); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to invalidate package cache")
	}
}

func (s *service) CreateTicketDefinition(ctx context.Context, req CreateTicketDefinitionRequest) (*TicketDefinitionResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event ID: %w", err)
	}

	maxPerOrder := req.MaxPerOrder
	if maxPerOrder == 0 {
		maxPerOrder = 10
	}

	definition := &TicketDefinition{
		EventID:              eventID,
		Name:                 req.Name,
		Description:          req.Description,
		Price:                req.Price,
		TotalCapacity:        req.TotalCapacity,
		MaxPerOrder:          maxPerOrder,
		EligibleAttendeeType: req.EligibleAttendeeType,
		IsActive:             true,
	}

	if err := s.repo.Create(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to create ticket definition: %w", err)
	}

	// Provision the full allocation of ticket rows up front so the
	// reservation engine can claim them with row locks.
	if s.provisioner != nil {
		if err := s.provisioner.ProvisionTickets(ctx, eventID, definition.ID, req.TotalCapacity, req.Price); err != nil {
			// Best effort cleanup; the definition is useless without rows
			if delErr := s.repo.Delete(ctx, definition.ID); delErr != nil {
				logger.GetDefault().WithError(delErr).Error("failed to clean up definition after provisioning failure")
			}
			return nil, fmt.Errorf("failed to provision tickets: %w", err)
		}
	}

	s.invalidatePackageCache(ctx)

	response := definition.ToResponse()
	return &response, nil
}

func (s *service) GetTicketDefinition(ctx context.Context, id uuid.UUID) (*TicketDefinitionResponse, error) {
	cacheKey := constants.BuildPackageKey(id.String())

	if s.cacheService != nil {
		var cached TicketDefinitionResponse
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	definition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	response := definition.ToResponse()

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, response, constants.TTL_SEMI_STATIC_QUICK); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to cache ticket definition")
		}
	}

	return &response, nil
}

func (s *service) GetTicketDefinitionsByEvent(ctx context.Context, eventID uuid.UUID) ([]TicketDefinitionResponse, error) {
	cacheKey := constants.BuildEventPackagesKey(eventID.String())

	if s.cacheService != nil {
		var cached []TicketDefinitionResponse
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	definitions, err := s.repo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket definitions: %w", err)
	}

	responses := make([]TicketDefinitionResponse, len(definitions))
	for i, definition := range definitions {
		responses[i] = definition.ToResponse()
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, responses, constants.TTL_SEMI_STATIC_QUICK); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to cache event ticket definitions")
		}
	}

	return responses, nil
}

func (s *service) UpdateTicketDefinition(ctx context.Context, id uuid.UUID, req UpdateTicketDefinitionRequest) (*TicketDefinitionResponse, error) {
	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.MaxPerOrder != nil {
		updates["max_per_order"] = *req.MaxPerOrder
	}
	if req.EligibleAttendeeType != nil {
		updates["eligible_attendee_type"] = *req.EligibleAttendeeType
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return nil, errors.New("no fields to update")
	}

	definition, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	s.invalidatePackageCache(ctx)

	response := definition.ToResponse()
	return &response, nil
}

func (s *service) DeleteTicketDefinition(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	// Definitions with reserved or sold tickets can only be deactivated
	if s.provisioner != nil {
		active, err := s.provisioner.HasActiveTickets(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check ticket state: %w", err)
		}
		if active {
			return ErrDefinitionHasSoldTickets
		}

		if err := s.provisioner.RemoveAvailableTickets(ctx, id); err != nil {
			return fmt.Errorf("failed to remove tickets: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ticket definition: %w", err)
	}

	s.invalidatePackageCache(ctx)
	return nil
}
