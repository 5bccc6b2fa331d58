package constants

import "fmt"

// Realtime Channel Naming
// Channel names are part of the wire contract consumed by the registration
// wizard frontend and must be preserved bit-exact across releases.

const (
	// Broadcast event name carried on system channels
	SystemStatusEventName = "ticket-system-status"

	// Process-wide UI notification emitted on presence state changes
	PresenceUpdateEventName = "ticket-presence-update"
)

// BuildPresenceChannel returns the presence channel for an event.
// Pattern: presence-tickets-{eventId}
func BuildPresenceChannel(eventID string) string {
	return fmt.Sprintf("presence-tickets-%s", eventID)
}

// BuildSystemChannel returns the system broadcast channel for an event.
// Pattern: system-tickets-{eventId}
func BuildSystemChannel(eventID string) string {
	return fmt.Sprintf("system-tickets-%s", eventID)
}

// BuildTicketUpdatesChannel returns the row-change channel for a reservation.
// Pattern: ticket-updates-{reservationId}, filter reservation_id=eq.{reservationId}
func BuildTicketUpdatesChannel(reservationID string) string {
	return fmt.Sprintf("ticket-updates-%s", reservationID)
}

// BuildAvailabilityChannel returns the row-change channel for an
// event + ticket definition pair.
// Pattern: availability-{eventId}-{ticketDefinitionId},
// filter eventid=eq.{eventId} AND ticketdefinitionid=eq.{ticketDefinitionId}
func BuildAvailabilityChannel(eventID, ticketDefinitionID string) string {
	return fmt.Sprintf("availability-%s-%s", eventID, ticketDefinitionID)
}
