package tickets

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus represents the lifecycle state of a single ticket row
type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusSold      TicketStatus = "sold"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusAvailable, TicketStatusReserved, TicketStatusSold, TicketStatusUsed, TicketStatusCancelled:
		return true
	default:
		return false
	}
}

// Ticket is one claimable unit of inventory. Rows are provisioned up
// front when a ticket definition is created and flow through
// available -> reserved -> sold -> used.
type Ticket struct {
	ID                 uuid.UUID    `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID            uuid.UUID    `json:"event_id" gorm:"type:uuid;not null;index:idx_tickets_event_definition_status"`
	TicketDefinitionID uuid.UUID    `json:"ticket_definition_id" gorm:"type:uuid;not null;index:idx_tickets_event_definition_status"`
	Status             TicketStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index:idx_tickets_event_definition_status"`
	Price              float64      `json:"price" gorm:"not null;check:price >= 0"`

	// Reservation linkage; populated while reserved, reservation_id is
	// preserved after sale for audit
	ReservationID        *uuid.UUID `json:"reservation_id,omitempty" gorm:"type:uuid"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`

	// Set when the reservation completes
	AttendeeID *uuid.UUID `json:"attendee_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Ticket) TableName() string {
	return "tickets"
}

// ReservedTicket is one row of a successful reservation
type ReservedTicket struct {
	TicketID      string    `json:"ticket_id"`
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Availability is a snapshot of counts for one (event, definition) pair
type Availability struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Sold      int `json:"sold"`
}

// TicketResponse is the admin-facing view of a ticket row
type TicketResponse struct {
	ID                   string     `json:"id"`
	EventID              string     `json:"event_id"`
	TicketDefinitionID   string     `json:"ticket_definition_id"`
	Status               string     `json:"status"`
	Price                float64    `json:"price"`
	ReservationID        string     `json:"reservation_id,omitempty"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	AttendeeID           string     `json:"attendee_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (t *Ticket) ToResponse() TicketResponse {
	resp := TicketResponse{
		ID:                   t.ID.String(),
		EventID:              t.EventID.String(),
		TicketDefinitionID:   t.TicketDefinitionID.String(),
		Status:               string(t.Status),
		Price:                t.Price,
		ReservationExpiresAt: t.ReservationExpiresAt,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
	if t.ReservationID != nil {
		resp.ReservationID = t.ReservationID.String()
	}
	if t.AttendeeID != nil {
		resp.AttendeeID = t.AttendeeID.String()
	}
	return resp
}

// TicketListQuery filters the admin ticket listing
type TicketListQuery struct {
	Page               int    `form:"page" binding:"omitempty,min=1"`
	Limit              int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Status             string `form:"status" binding:"omitempty,oneof=available reserved sold used cancelled"`
	TicketDefinitionID string `form:"ticket_definition_id" binding:"omitempty,uuid"`
	ReservationID      string `form:"reservation_id" binding:"omitempty,uuid"`
}

// PaginatedTickets wraps a page of ticket rows
type PaginatedTickets struct {
	Tickets    []TicketResponse `json:"tickets"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
}
