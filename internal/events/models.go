package events

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name        string      `json:"name" gorm:"not null;size:255"`
	Slug        string      `json:"slug" gorm:"uniqueIndex;not null;size:255"`
	Description string      `json:"description" gorm:"type:text"`
	Venue       string      `json:"venue" gorm:"not null;size:255"`
	DateTime    time.Time   `json:"date_time" gorm:"not null"`
	Status      EventStatus `json:"status" gorm:"type:varchar(20);default:'draft'"`
	ImageURL    string      `json:"image_url" gorm:"size:500"`

	// Featured events surface on the public landing page
	Featured bool `json:"featured" gorm:"default:false"`

	// Masonic context for the function (e.g. "Grand Installation")
	HostLodge   string `json:"host_lodge,omitempty" gorm:"size:255"`
	DressCode   string `json:"dress_code,omitempty" gorm:"size:100"`
	Regalia     string `json:"regalia,omitempty" gorm:"size:255"`
	EligibleTo  string `json:"eligible_to,omitempty" gorm:"size:255"`

	CreatedBy uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	UpdatedBy *uuid.UUID `json:"updated_by" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type EventResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Venue       string      `json:"venue"`
	DateTime    time.Time   `json:"date_time"`
	Status      EventStatus `json:"status"`
	ImageURL    string      `json:"image_url"`
	Featured    bool        `json:"featured"`
	HostLodge   string      `json:"host_lodge,omitempty"`
	DressCode   string      `json:"dress_code,omitempty"`
	Regalia     string      `json:"regalia,omitempty"`
	EligibleTo  string      `json:"eligible_to,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type CreateEventRequest struct {
	Name        string    `json:"name" binding:"required,min=3,max=255"`
	Slug        string    `json:"slug" binding:"required,min=3,max=255"`
	Description string    `json:"description" binding:"max=2000"`
	Venue       string    `json:"venue" binding:"required,min=3,max=255"`
	DateTime    time.Time `json:"date_time" binding:"required"`
	ImageURL    string    `json:"image_url" binding:"omitempty,url"`
	Featured    bool      `json:"featured"`
	HostLodge   string    `json:"host_lodge" binding:"max=255"`
	DressCode   string    `json:"dress_code" binding:"max=100"`
	Regalia     string    `json:"regalia" binding:"max=255"`
	EligibleTo  string    `json:"eligible_to" binding:"max=255"`
}

type UpdateEventRequest struct {
	Name        *string    `json:"name" binding:"omitempty,min=3,max=255"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Venue       *string    `json:"venue" binding:"omitempty,min=3,max=255"`
	DateTime    *time.Time `json:"date_time"`
	Status      *string    `json:"status" binding:"omitempty,oneof=draft published cancelled completed"`
	ImageURL    *string    `json:"image_url" binding:"omitempty,url"`
	Featured    *bool      `json:"featured"`
	HostLodge   *string    `json:"host_lodge" binding:"omitempty,max=255"`
	DressCode   *string    `json:"dress_code" binding:"omitempty,max=100"`
	Regalia     *string    `json:"regalia" binding:"omitempty,max=255"`
	EligibleTo  *string    `json:"eligible_to" binding:"omitempty,max=255"`
}

type EventListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Venue    string `form:"venue"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Status   string `form:"status" binding:"omitempty,oneof=draft published cancelled completed"`
	Featured *bool  `form:"featured"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// Helper method to convert Event to EventResponse
func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:          e.ID.String(),
		Name:        e.Name,
		Slug:        e.Slug,
		Description: e.Description,
		Venue:       e.Venue,
		DateTime:    e.DateTime,
		Status:      e.Status,
		ImageURL:    e.ImageURL,
		Featured:    e.Featured,
		HostLodge:   e.HostLodge,
		DressCode:   e.DressCode,
		Regalia:     e.Regalia,
		EligibleTo:  e.EligibleTo,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}
