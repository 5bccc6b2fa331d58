package registrations

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, registration *Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	GetByReference(ctx context.Context, reference string) (*Registration, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, stampedAt *time.Time) error
	AttachReservation(ctx context.Context, id uuid.UUID, reservationID uuid.UUID, totalPrice float64) error

	AddAttendee(ctx context.Context, attendee *Attendee) error
	GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]Attendee, error)
	AssignTickets(ctx context.Context, registrationID uuid.UUID, ticketIDs []uuid.UUID) error

	GetUserRegistrations(ctx context.Context, userID uuid.UUID, query RegistrationListQuery) ([]Registration, int64, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, registration *Registration) error {
	return r.db.WithContext(ctx).Create(registration).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	var registration Registration
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("id = ?", id).
		First(&registration).Error
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Registration, error) {
	var registration Registration
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("reference = ?", reference).
		First(&registration).Error
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, stampedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	switch status {
	case StatusConfirmed:
		updates["confirmed_at"] = stampedAt
	case StatusCancelled:
		updates["cancelled_at"] = stampedAt
	}

	return r.db.WithContext(ctx).
		Model(&Registration{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) AttachReservation(ctx context.Context, id uuid.UUID, reservationID uuid.UUID, totalPrice float64) error {
	return r.db.WithContext(ctx).
		Model(&Registration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reservation_id": reservationID,
			"total_price":    totalPrice,
			"updated_at":     time.Now(),
		}).Error
}

func (r *repository) AddAttendee(ctx context.Context, attendee *Attendee) error {
	return r.db.WithContext(ctx).Create(attendee).Error
}

func (r *repository) GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]Attendee, error) {
	var attendees []Attendee
	err := r.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("is_primary DESC, created_at ASC").
		Find(&attendees).Error
	return attendees, err
}

// AssignTickets pairs attendees with ticket IDs in stable order, primary
// first. Runs in one transaction so a partial assignment never persists.
func (r *repository) AssignTickets(ctx context.Context, registrationID uuid.UUID, ticketIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attendees []Attendee
		if err := tx.
			Where("registration_id = ?", registrationID).
			Order("is_primary DESC, created_at ASC").
			Find(&attendees).Error; err != nil {
			return err
		}

		for i, attendee := range attendees {
			if i >= len(ticketIDs) {
				break
			}
			if err := tx.
				Model(&Attendee{}).
				Where("id = ?", attendee.ID).
				Updates(map[string]interface{}{
					"ticket_id":  ticketIDs[i],
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) GetUserRegistrations(ctx context.Context, userID uuid.UUID, query RegistrationListQuery) ([]Registration, int64, error) {
	var registrations []Registration
	var totalCount int64

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	baseQuery := r.db.WithContext(ctx).
		Model(&Registration{}).
		Where("user_id = ?", userID)

	if query.Status != "" {
		baseQuery = baseQuery.Where("status = ?", query.Status)
	}
	if query.EventID != "" {
		if eventID, err := uuid.Parse(query.EventID); err == nil {
			baseQuery = baseQuery.Where("event_id = ?", eventID)
		}
	}

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Preload("Attendees").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&registrations).Error

	return registrations, totalCount, err
}

func (r *repository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]Registration, error) {
	var registrations []Registration
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("event_id = ?", eventID).
		Where("status = ?", StatusConfirmed).
		Order("created_at DESC").
		Find(&registrations).Error
	return registrations, err
}

// CalculateTotalPages converts a row count into a page count
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
