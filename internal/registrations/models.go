package registrations

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationType distinguishes the wizard flows
type RegistrationType string

const (
	TypeIndividual RegistrationType = "individual"
	TypeLodge      RegistrationType = "lodge"
	TypeDelegation RegistrationType = "delegation"
)

func (t RegistrationType) IsValid() bool {
	switch t {
	case TypeIndividual, TypeLodge, TypeDelegation:
		return true
	default:
		return false
	}
}

// AttendeeType mirrors the eligibility classes on ticket definitions
type AttendeeType string

const (
	AttendeeMason   AttendeeType = "mason"
	AttendeeGuest   AttendeeType = "guest"
	AttendeePartner AttendeeType = "partner"
)

func (t AttendeeType) IsValid() bool {
	switch t {
	case AttendeeMason, AttendeeGuest, AttendeePartner:
		return true
	default:
		return false
	}
}

// Registration is one wizard session's order: a set of attendees against
// a single event, tied to the reservation that holds their tickets until
// confirmation.
type Registration struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID       uuid.UUID        `gorm:"type:uuid;index;not null" json:"event_id"`
	Type          RegistrationType `gorm:"type:varchar(20);not null" json:"type"`
	Status        Status           `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	Reference     string           `gorm:"uniqueIndex;not null" json:"reference"`
	ReservationID *uuid.UUID       `gorm:"type:uuid;index" json:"reservation_id,omitempty"`
	TotalPrice    float64          `gorm:"not null;default:0" json:"total_price"`

	// Lodge and delegation flows carry the group identity on the
	// registration itself
	LodgeName   string `gorm:"type:varchar(255)" json:"lodge_name,omitempty"`
	LodgeNumber string `gorm:"type:varchar(50)" json:"lodge_number,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Attendees []Attendee `json:"attendees,omitempty" gorm:"foreignKey:RegistrationID;constraint:OnDelete:CASCADE;"`
}

func (Registration) TableName() string {
	return "registrations"
}

func (r *Registration) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

func (r *Registration) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// Attendee is one person attending under a registration. The ticket ID
// is set when the reservation completes.
type Attendee struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RegistrationID uuid.UUID    `gorm:"type:uuid;index;not null" json:"registration_id"`
	Type           AttendeeType `gorm:"type:varchar(20);not null" json:"type"`
	IsPrimary      bool         `gorm:"default:false" json:"is_primary"`

	FirstName string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(100);not null" json:"last_name"`
	Email     string `gorm:"type:varchar(255)" json:"email,omitempty"`

	// Masonic details, only meaningful for mason attendees
	LodgeName   string `gorm:"type:varchar(255)" json:"lodge_name,omitempty"`
	LodgeNumber string `gorm:"type:varchar(50)" json:"lodge_number,omitempty"`
	Rank        string `gorm:"type:varchar(100)" json:"rank,omitempty"`

	DietaryRequirements string `gorm:"type:text" json:"dietary_requirements,omitempty"`
	SpecialNeeds        string `gorm:"type:text" json:"special_needs,omitempty"`

	TicketID *uuid.UUID `gorm:"type:uuid;index" json:"ticket_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attendee) TableName() string {
	return "attendees"
}

//  REQUEST / RESPONSE SHAPES

type CreateRegistrationRequest struct {
	EventID     string `json:"event_id" binding:"required,uuid"`
	Type        string `json:"type" binding:"required,oneof=individual lodge delegation"`
	LodgeName   string `json:"lodge_name"`
	LodgeNumber string `json:"lodge_number"`
}

type AddAttendeeRequest struct {
	Type                string `json:"type" binding:"required,oneof=mason guest partner"`
	IsPrimary           bool   `json:"is_primary"`
	FirstName           string `json:"first_name" binding:"required"`
	LastName            string `json:"last_name" binding:"required"`
	Email               string `json:"email" binding:"omitempty,email"`
	LodgeName           string `json:"lodge_name"`
	LodgeNumber         string `json:"lodge_number"`
	Rank                string `json:"rank"`
	DietaryRequirements string `json:"dietary_requirements"`
	SpecialNeeds        string `json:"special_needs"`
}

type AttachReservationRequest struct {
	ReservationID string  `json:"reservation_id" binding:"required,uuid"`
	TotalPrice    float64 `json:"total_price" binding:"gte=0"`
}

type RegistrationListQuery struct {
	Page    int    `form:"page"`
	Limit   int    `form:"limit"`
	Status  string `form:"status"`
	EventID string `form:"event_id"`
}

type PaginatedRegistrations struct {
	Registrations []Registration `json:"registrations"`
	TotalCount    int64          `json:"total_count"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	TotalPages    int            `json:"total_pages"`
}
