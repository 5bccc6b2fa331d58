package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleAnonymous Role = "ANONYMOUS"
)

type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Password  string    `json:"-"` // hide in json; empty for anonymous sessions
	Role      Role      `json:"role" gorm:"not null;default:'USER'"`
	Email     string    `json:"email" gorm:"uniqueIndex"` // empty for anonymous sessions

	// IsAnonymous marks a session created by the reservation flow without
	// credentials. Such users can later be converted via ConvertAnonymousUser.
	IsAnonymous bool `json:"is_anonymous" gorm:"not null;default:false"`

	// Masonic profile metadata, populated on conversion or registration
	LodgeName   string `json:"lodge_name,omitempty"`
	LodgeNumber string `json:"lodge_number,omitempty"`
	Rank        string `json:"rank,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case string(RoleUser), string(RoleAdmin), string(RoleAnonymous):
		return true
	default:
		return false
	}
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
