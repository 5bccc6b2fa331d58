package packages

import (
	"time"

	"github.com/google/uuid"
)

// TicketDefinition describes a purchasable ticket type for an event
// (e.g. "Banquet - Brother", "Ceremony Only"). Creating a definition
// provisions its full allocation of ticket rows up front.
type TicketDefinition struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID     uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"not null;size:255"`
	Description string    `json:"description" gorm:"type:text"`
	Price       float64   `json:"price" gorm:"not null;check:price >= 0"`

	// Number of ticket rows provisioned for this definition
	TotalCapacity int `json:"total_capacity" gorm:"not null;check:total_capacity > 0"`

	// Cap on a single reservation; 0 means no cap
	MaxPerOrder int `json:"max_per_order" gorm:"default:10"`

	// Restricts who may select this definition in the wizard
	// (e.g. "mason", "guest", "partner"); empty means unrestricted
	EligibleAttendeeType string `json:"eligible_attendee_type,omitempty" gorm:"size:50"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type TicketDefinitionResponse struct {
	ID                   string    `json:"id"`
	EventID              string    `json:"event_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Price                float64   `json:"price"`
	TotalCapacity        int       `json:"total_capacity"`
	MaxPerOrder          int       `json:"max_per_order"`
	EligibleAttendeeType string    `json:"eligible_attendee_type,omitempty"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type CreateTicketDefinitionRequest struct {
	EventID              string  `json:"event_id" binding:"required,uuid"`
	Name                 string  `json:"name" binding:"required,min=2,max=255"`
	Description          string  `json:"description" binding:"max=2000"`
	Price                float64 `json:"price" binding:"min=0"`
	TotalCapacity        int     `json:"total_capacity" binding:"required,min=1,max=100000"`
	MaxPerOrder          int     `json:"max_per_order" binding:"omitempty,min=1,max=100"`
	EligibleAttendeeType string  `json:"eligible_attendee_type" binding:"omitempty,oneof=mason guest partner"`
}

type UpdateTicketDefinitionRequest struct {
	Name                 *string  `json:"name" binding:"omitempty,min=2,max=255"`
	Description          *string  `json:"description" binding:"omitempty,max=2000"`
	Price                *float64 `json:"price" binding:"omitempty,min=0"`
	MaxPerOrder          *int     `json:"max_per_order" binding:"omitempty,min=1,max=100"`
	EligibleAttendeeType *string  `json:"eligible_attendee_type" binding:"omitempty,oneof=mason guest partner"`
	IsActive             *bool    `json:"is_active"`
}

func (d *TicketDefinition) ToResponse() TicketDefinitionResponse {
	return TicketDefinitionResponse{
		ID:                   d.ID.String(),
		EventID:              d.EventID.String(),
		Name:                 d.Name,
		Description:          d.Description,
		Price:                d.Price,
		TotalCapacity:        d.TotalCapacity,
		MaxPerOrder:          d.MaxPerOrder,
		EligibleAttendeeType: d.EligibleAttendeeType,
		IsActive:             d.IsActive,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

// TableName specifies the table name for GORM
func (TicketDefinition) TableName() string {
	return "ticket_definitions"
}
