package realtime

import "time"

// System status broadcast types
const (
	StatusTypeAvailabilityUpdate = "availability_update"
	StatusTypeHighDemand         = "high_demand"
	StatusTypeSystemMaintenance  = "system_maintenance"
)

// SystemStatusMessage is a transient broadcast on the system channel.
// Not persisted; consumed by whoever is listening at that instant.
type SystemStatusMessage struct {
	Type               string `json:"type"`
	EventID            string `json:"event_id"`
	TicketDefinitionID string `json:"ticket_definition_id,omitempty"`
	Message            string `json:"message"`
	AvailableCount     *int   `json:"available_count,omitempty"`
	Timestamp          int64  `json:"timestamp"`
}

// PresenceEntry tracks one connected client viewing an event
type PresenceEntry struct {
	ClientID           string `json:"client_id"`
	EventID            string `json:"event_id"`
	TicketDefinitionID string `json:"ticket_definition_id,omitempty"`
	ViewingSince       int64  `json:"viewing_since"` // epoch ms
	IsReserving        bool   `json:"is_reserving"`
}

// PresenceUpdate carries aggregate presence counts for one event.
// Emitted on every presence sync/join/leave.
type PresenceUpdate struct {
	TotalViewers   int   `json:"totalViewers"`
	TotalReserving int   `json:"totalReserving"`
	Timestamp      int64 `json:"timestamp"`
}

// TicketUpdateMessage is published on ticket-updates-{reservationId}
// whenever rows of that reservation change state
type TicketUpdateMessage struct {
	ReservationID string   `json:"reservation_id"`
	Status        string   `json:"status"`
	TicketIDs     []string `json:"ticket_ids,omitempty"`
	Timestamp     int64    `json:"timestamp"`
}

// AvailabilityChangeMessage is published on availability-{eventId}-{defId}
// on any insert/update/delete of matching ticket rows. Subscribers re-query
// counts on receipt; the message itself carries no counts.
type AvailabilityChangeMessage struct {
	EventID            string `json:"event_id"`
	TicketDefinitionID string `json:"ticket_definition_id"`
	Timestamp          int64  `json:"timestamp"`
}

// Envelope wraps every payload published on a realtime channel
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
