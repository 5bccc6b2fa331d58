package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	// Availability queries scan by event + definition + status constantly
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_event_definition_status
		ON tickets (event_id, ticket_definition_id, status);
	`).Error
	if err != nil {
		return err
	}

	// Reservation sweeps and ticket-update subscriptions filter on reservation_id
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_reservation_id
		ON tickets (reservation_id)
		WHERE reservation_id IS NOT NULL;
	`).Error
	if err != nil {
		return err
	}

	// Lazy-expiry sweep scans reserved rows by expiry
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tickets_reservation_expires
		ON tickets (reservation_expires_at)
		WHERE status = 'reserved';
	`).Error
	if err != nil {
		return err
	}

	return nil
}
