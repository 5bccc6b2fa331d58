package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/cache"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

type Service interface {
	SetCacheService(cacheService cache.Service)

	CreateEvent(userID uuid.UUID, req CreateEventRequest) (*EventResponse, error)
	GetEventByID(id uuid.UUID) (*EventResponse, error)
	GetEventBySlug(slug string) (*EventResponse, error)
	UpdateEvent(id uuid.UUID, adminID uuid.UUID, req UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(id uuid.UUID) error
	GetAllEvents(query EventListQuery) (*PaginatedEvents, error)
	GetUpcomingEvents(limit int) ([]EventResponse, error)
	GetFeaturedEvents(limit int) ([]EventResponse, error)

	// Used by the ticket engine to gate reservations
	CanAcceptRegistrations(eventID uuid.UUID) (bool, error)
}

type service struct {
	repo         Repository
	cacheService cache.Service
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// Cache helper methods

func (s *service) setCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Set(ctx, key, value, ttl); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to cache event data", "key", key)
	}
}

func (s *service) getCache(ctx context.Context, key string, dest interface{}) error {
	if s.cacheService == nil {
		return cache.ErrCacheMiss
	}
	return s.cacheService.Get(ctx, key, dest)
}

func (s *service) invalidateEventCache(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENTS); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to invalidate event cache")
	}
}

func (s *service) CreateEvent(userID uuid.UUID, req CreateEventRequest) (*EventResponse, error) {
	// Validate date is in the future
	if req.DateTime.Before(time.Now()) {
		return nil, errors.New("event date must be in the future")
	}

	// Slugs must be unique; surface a clean error rather than a DB constraint
	if existing, err := s.repo.GetBySlug(req.Slug); err == nil && existing != nil {
		return nil, fmt.Errorf("event with slug %q already exists", req.Slug)
	}

	event := &Event{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Venue:       req.Venue,
		DateTime:    req.DateTime,
		Status:      EventStatusDraft,
		ImageURL:    req.ImageURL,
		Featured:    req.Featured,
		HostLodge:   req.HostLodge,
		DressCode:   req.DressCode,
		Regalia:     req.Regalia,
		EligibleTo:  req.EligibleTo,
		CreatedBy:   userID,
	}

	if err := s.repo.Create(event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.invalidateEventCache(context.Background())

	response := event.ToResponse()
	return &response, nil
}

func (s *service) GetEventByID(id uuid.UUID) (*EventResponse, error) {
	ctx := context.Background()
	cacheKey := constants.BuildEventKey(id.String())

	// Try to get from cache first
	var cachedEvent EventResponse
	if err := s.getCache(ctx, cacheKey, &cachedEvent); err == nil {
		return &cachedEvent, nil
	}

	// Cache miss - get from database
	event, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	response := event.ToResponse()
	s.setCache(ctx, cacheKey, response, constants.TTL_SEMI_STATIC_MEDIUM)

	return &response, nil
}

func (s *service) GetEventBySlug(slug string) (*EventResponse, error) {
	event, err := s.repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	response := event.ToResponse()
	return &response, nil
}

func (s *service) UpdateEvent(id uuid.UUID, adminID uuid.UUID, req UpdateEventRequest) (*EventResponse, error) {
	// Get current event
	currentEvent, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	// Check if event can be updated based on its status
	if !currentEvent.Status.CanBeUpdated() {
		return nil, fmt.Errorf("cannot update event with status: %s", currentEvent.Status)
	}

	// Build updates map
	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.DateTime != nil {
		if req.DateTime.Before(time.Now()) {
			return nil, errors.New("event date must be in the future")
		}
		updates["date_time"] = *req.DateTime
	}
	if req.Status != nil {
		status := EventStatus(*req.Status)
		if !status.IsValid() {
			return nil, errors.New("invalid event status")
		}
		updates["status"] = status
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.Featured != nil {
		updates["featured"] = *req.Featured
	}
	if req.HostLodge != nil {
		updates["host_lodge"] = *req.HostLodge
	}
	if req.DressCode != nil {
		updates["dress_code"] = *req.DressCode
	}
	if req.Regalia != nil {
		updates["regalia"] = *req.Regalia
	}
	if req.EligibleTo != nil {
		updates["eligible_to"] = *req.EligibleTo
	}

	// Update timestamp and track who updated it
	updates["updated_at"] = time.Now()
	updates["updated_by"] = adminID

	updatedEvent, err := s.repo.Update(id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	s.invalidateEventCache(context.Background())

	response := updatedEvent.ToResponse()
	return &response, nil
}

func (s *service) DeleteEvent(id uuid.UUID) error {
	currentEvent, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event: %w", err)
	}

	if !currentEvent.Status.CanBeDeleted() {
		return fmt.Errorf("cannot delete event with status: %s. Only draft events can be deleted", currentEvent.Status)
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	s.invalidateEventCache(context.Background())
	return nil
}

func (s *service) GetAllEvents(query EventListQuery) (*PaginatedEvents, error) {
	// Set defaults
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	ctx := context.Background()

	// Only unfiltered list pages are cached; filtered queries go to the DB
	cacheable := query.Search == "" && query.Venue == "" && query.Status == "" &&
		query.DateFrom == "" && query.DateTo == "" && query.Featured == nil
	cacheKey := constants.BuildEventListKey(query.Page, query.Limit)

	if cacheable {
		var cachedResult PaginatedEvents
		if err := s.getCache(ctx, cacheKey, &cachedResult); err == nil {
			return &cachedResult, nil
		}
	}

	events, totalCount, err := s.repo.GetAll(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	eventResponses := make([]EventResponse, len(events))
	for i, event := range events {
		eventResponses[i] = event.ToResponse()
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(query.Limit)))

	result := &PaginatedEvents{
		Events:     eventResponses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}

	if cacheable {
		s.setCache(ctx, cacheKey, result, constants.TTL_SEMI_STATIC_SHORT)
	}

	return result, nil
}

func (s *service) GetUpcomingEvents(limit int) ([]EventResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("%s:limit:%d", constants.BuildUpcomingEventsKey(), limit)

	var cachedResult []EventResponse
	if err := s.getCache(ctx, cacheKey, &cachedResult); err == nil {
		return cachedResult, nil
	}

	events, err := s.repo.GetUpcomingEvents(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming events: %w", err)
	}

	responses := make([]EventResponse, len(events))
	for i, event := range events {
		responses[i] = event.ToResponse()
	}

	s.setCache(ctx, cacheKey, responses, constants.TTL_SEMI_STATIC_QUICK)

	return responses, nil
}

func (s *service) GetFeaturedEvents(limit int) ([]EventResponse, error) {
	if limit <= 0 {
		limit = 6
	}

	events, err := s.repo.GetFeaturedEvents(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get featured events: %w", err)
	}

	responses := make([]EventResponse, len(events))
	for i, event := range events {
		responses[i] = event.ToResponse()
	}

	return responses, nil
}

func (s *service) CanAcceptRegistrations(eventID uuid.UUID) (bool, error) {
	event, err := s.repo.GetByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrEventNotFound
		}
		return false, fmt.Errorf("failed to get event: %w", err)
	}

	if !event.Status.CanAcceptRegistrations() {
		return false, nil
	}

	// No reservations for past events
	if event.DateTime.Before(time.Now()) {
		return false, nil
	}

	return true, nil
}
