package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientAvailability = errors.New("not enough tickets available")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrReservationExpired       = errors.New("reservation has expired")
)

type Repository interface {
	// Provisioning
	CreateTickets(ctx context.Context, tickets []Ticket) error
	DeleteAvailableByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) error
	CountActiveByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) (int64, error)

	// Reservation lifecycle
	ReserveAvailable(ctx context.Context, eventID, ticketDefinitionID, reservationID uuid.UUID, quantity int, expiresAt time.Time) ([]Ticket, int64, error)
	CompleteReservation(ctx context.Context, reservationID, attendeeID uuid.UUID) ([]Ticket, error)
	ReleaseReservation(ctx context.Context, reservationID uuid.UUID) (int64, error)
	ReleaseExpired(ctx context.Context, now time.Time) ([]ExpiredScope, error)
	GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]Ticket, error)

	// Counts
	CountByStatus(ctx context.Context, eventID, ticketDefinitionID uuid.UUID) (*Availability, error)

	// Admin reads
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByEvent(ctx context.Context, eventID uuid.UUID, query TicketListQuery) ([]Ticket, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status TicketStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

//  PROVISIONING

func (r *repository) CreateTickets(ctx context.Context, tickets []Ticket) error {
	// Batched insert keeps provisioning of large allocations in bounds
	return r.db.WithContext(ctx).CreateInBatches(&tickets, 500).Error
}

func (r *repository) DeleteAvailableByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("ticket_definition_id = ? AND status = ?", ticketDefinitionID, TicketStatusAvailable).
		Delete(&Ticket{}).Error
}

func (r *repository) CountActiveByDefinition(ctx context.Context, ticketDefinitionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("ticket_definition_id = ? AND status IN ?", ticketDefinitionID,
			[]TicketStatus{TicketStatusReserved, TicketStatusSold, TicketStatusUsed}).
		Count(&count).Error
	return count, err
}

//  RESERVATION LIFECYCLE

// ExpiredScope reports how many holds a sweep released in one
// (event, ticket definition) scope
type ExpiredScope struct {
	EventID            uuid.UUID
	TicketDefinitionID uuid.UUID
	Released           int64
}

// ReserveAvailable claims `quantity` available rows inside one transaction.
// Expired reservations matching the scope are lazily released first, then
// rows are locked with FOR UPDATE SKIP LOCKED so concurrent reservations
// never contend for the same rows. The released count is reported so the
// caller can account for it in the counts mirror.
func (r *repository) ReserveAvailable(ctx context.Context, eventID, ticketDefinitionID, reservationID uuid.UUID, quantity int, expiresAt time.Time) ([]Ticket, int64, error) {
	var claimed []Ticket
	var released int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// Lazy release of expired holds in this scope
		release := tx.Model(&Ticket{}).
			Where("event_id = ? AND ticket_definition_id = ? AND status = ? AND reservation_expires_at < ?",
				eventID, ticketDefinitionID, TicketStatusReserved, now).
			Updates(map[string]interface{}{
				"status":                 TicketStatusAvailable,
				"reservation_id":         nil,
				"reservation_expires_at": nil,
			})
		if release.Error != nil {
			return release.Error
		}
		released = release.RowsAffected

		// Claim rows; SKIP LOCKED avoids blocking on concurrent claims
		var candidates []Ticket
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("event_id = ? AND ticket_definition_id = ? AND status = ?",
				eventID, ticketDefinitionID, TicketStatusAvailable).
			Order("created_at ASC").
			Limit(quantity).
			Find(&candidates).Error; err != nil {
			return err
		}

		if len(candidates) < quantity {
			return ErrInsufficientAvailability
		}

		ids := make([]uuid.UUID, len(candidates))
		for i, t := range candidates {
			ids[i] = t.ID
		}

		if err := tx.Model(&Ticket{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":                 TicketStatusReserved,
				"reservation_id":         reservationID,
				"reservation_expires_at": expiresAt,
			}).Error; err != nil {
			return err
		}

		return tx.Where("id IN ?", ids).Order("created_at ASC").Find(&claimed).Error
	})

	if err != nil {
		// The transaction rolled back; any lazy release rolled back with it
		return nil, 0, err
	}
	return claimed, released, nil
}

// CompleteReservation converts every reserved row of the reservation to
// sold. Fails if the reservation is unknown or already expired.
func (r *repository) CompleteReservation(ctx context.Context, reservationID, attendeeID uuid.UUID) ([]Ticket, error) {
	var completed []Ticket

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held []Ticket
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reservation_id = ? AND status = ?", reservationID, TicketStatusReserved).
			Find(&held).Error; err != nil {
			return err
		}

		if len(held) == 0 {
			return ErrReservationNotFound
		}

		now := time.Now()
		for _, t := range held {
			if t.ReservationExpiresAt != nil && t.ReservationExpiresAt.Before(now) {
				// Release the whole hold; a partially expired reservation
				// cannot be completed
				if err := tx.Model(&Ticket{}).
					Where("reservation_id = ? AND status = ?", reservationID, TicketStatusReserved).
					Updates(map[string]interface{}{
						"status":                 TicketStatusAvailable,
						"reservation_id":         nil,
						"reservation_expires_at": nil,
					}).Error; err != nil {
					return err
				}
				return ErrReservationExpired
			}
		}

		// reservation_id stays on the row for audit; only the expiry clears
		if err := tx.Model(&Ticket{}).
			Where("reservation_id = ? AND status = ?", reservationID, TicketStatusReserved).
			Updates(map[string]interface{}{
				"status":                 TicketStatusSold,
				"attendee_id":            attendeeID,
				"reservation_expires_at": nil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("reservation_id = ? AND status = ?", reservationID, TicketStatusSold).
			Find(&completed).Error
	})

	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (r *repository) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("reservation_id = ? AND status = ?", reservationID, TicketStatusReserved).
		Updates(map[string]interface{}{
			"status":                 TicketStatusAvailable,
			"reservation_id":         nil,
			"reservation_expires_at": nil,
		})
	return result.RowsAffected, result.Error
}

// ReleaseExpired sweeps every expired hold across all events. Called
// periodically by the engine in addition to the lazy per-scope release.
// The per-scope counts let the engine drop the affected mirrors.
func (r *repository) ReleaseExpired(ctx context.Context, now time.Time) ([]ExpiredScope, error) {
	var scopes []ExpiredScope

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Ticket{}).
			Select("event_id, ticket_definition_id, COUNT(*) AS released").
			Where("status = ? AND reservation_expires_at < ?", TicketStatusReserved, now).
			Group("event_id, ticket_definition_id").
			Scan(&scopes).Error; err != nil {
			return err
		}
		if len(scopes) == 0 {
			return nil
		}

		return tx.Model(&Ticket{}).
			Where("status = ? AND reservation_expires_at < ?", TicketStatusReserved, now).
			Updates(map[string]interface{}{
				"status":                 TicketStatusAvailable,
				"reservation_id":         nil,
				"reservation_expires_at": nil,
			}).Error
	})

	if err != nil {
		return nil, err
	}
	return scopes, nil
}

func (r *repository) GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&tickets).Error
	return tickets, err
}

//  COUNTS

func (r *repository) CountByStatus(ctx context.Context, eventID, ticketDefinitionID uuid.UUID) (*Availability, error) {
	type statusCount struct {
		Status string
		Count  int
	}

	var counts []statusCount
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("status, COUNT(*) as count").
		Where("event_id = ? AND ticket_definition_id = ?", eventID, ticketDefinitionID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	availability := &Availability{}
	for _, c := range counts {
		switch TicketStatus(c.Status) {
		case TicketStatusAvailable:
			availability.Available = c.Count
		case TicketStatusReserved:
			availability.Reserved = c.Count
		case TicketStatusSold, TicketStatusUsed:
			availability.Sold += c.Count
		}
	}

	return availability, nil
}

//  ADMIN READS

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) GetByEvent(ctx context.Context, eventID uuid.UUID, query TicketListQuery) ([]Ticket, int64, error) {
	var tickets []Ticket
	var totalCount int64

	db := r.db.WithContext(ctx).Model(&Ticket{}).Where("event_id = ?", eventID)

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.TicketDefinitionID != "" {
		db = db.Where("ticket_definition_id = ?", query.TicketDefinitionID)
	}
	if query.ReservationID != "" {
		db = db.Where("reservation_id = ?", query.ReservationID)
	}

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 50
	}
	offset := (query.Page - 1) * query.Limit

	err := db.Order("created_at ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&tickets).Error

	return tickets, totalCount, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status TicketStatus) error {
	return r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ?", id).
		Update("status", status).Error
}
