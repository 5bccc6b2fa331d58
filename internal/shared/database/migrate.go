package database

import (
	"lodgetix/internal/events"
	"lodgetix/internal/packages"
	"lodgetix/internal/registrations"
	"lodgetix/internal/tickets"
	"lodgetix/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&users.User{},
		&events.Event{},
		&packages.TicketDefinition{},
		&registrations.Registration{},
		&registrations.Attendee{},
		&tickets.Ticket{},
	); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
