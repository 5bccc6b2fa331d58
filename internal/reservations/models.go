package reservations

import "time"

// FailureKind classifies why an orchestrator operation failed. Operations
// never surface raw errors past the orchestrator boundary; callers branch
// on the kind.
type FailureKind string

const (
	FailureValidation         FailureKind = "validation_error"
	FailureTimedOut           FailureKind = "timed_out"
	FailureStorageUnavailable FailureKind = "storage_unavailable"
	FailureInsufficientStock  FailureKind = "insufficient_availability"
	FailureNotFound           FailureKind = "reservation_not_found"
	FailureExpired            FailureKind = "reservation_expired"
	FailureInternal           FailureKind = "internal_error"
)

// Failure describes a failed operation
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Reservation is one held ticket, as returned to the wizard. All rows of
// one reserve call share a reservation ID and expiry.
type Reservation struct {
	TicketID           string    `json:"ticket_id"`
	ReservationID      string    `json:"reservation_id"`
	ExpiresAt          time.Time `json:"expires_at"`
	EventID            string    `json:"event_id"`
	TicketDefinitionID string    `json:"ticket_definition_id"`
}

// BootstrappedSession is the anonymous identity minted when a reserve
// call arrives without one. The wizard stores the tokens and sends them
// on subsequent requests.
type BootstrappedSession struct {
	ClientID     string `json:"client_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ReserveResult is the outcome of ReserveTickets. Session is set only
// when the call arrived without an identity and one was minted for it.
type ReserveResult struct {
	Success      bool                 `json:"success"`
	Reservations []Reservation        `json:"reservations,omitempty"`
	Session      *BootstrappedSession `json:"session,omitempty"`
	Failure      *Failure             `json:"failure,omitempty"`
}

// CompleteResult is the outcome of CompleteReservation. The completion
// path returns ticket IDs only; expiry and scope are zeroed by design.
type CompleteResult struct {
	Success       bool     `json:"success"`
	ReservationID string   `json:"reservation_id,omitempty"`
	TicketIDs     []string `json:"ticket_ids,omitempty"`
	Failure       *Failure `json:"failure,omitempty"`
}

// AvailabilitySnapshot carries counts for one (event, definition) pair.
// Reads fail open: on any backend error the counts are zero and Degraded
// is set, so the wizard renders "none available" rather than crashing.
type AvailabilitySnapshot struct {
	Available int  `json:"available"`
	Reserved  int  `json:"reserved"`
	Sold      int  `json:"sold"`
	Degraded  bool `json:"degraded,omitempty"`
}

// CachedReservation is the payload kept per client between wizard steps
type CachedReservation struct {
	ReservationID      string    `json:"reservation_id"`
	EventID            string    `json:"event_id"`
	TicketDefinitionID string    `json:"ticket_definition_id"`
	TicketIDs          []string  `json:"ticket_ids"`
	Quantity           int       `json:"quantity"`
	ExpiresAt          time.Time `json:"expires_at"`
	StoredAt           time.Time `json:"stored_at"`
}

// Registration wizard flow types
const (
	RegistrationTypeIndividual = "individual"
	RegistrationTypeLodge      = "lodge"
	RegistrationTypeDelegation = "delegation"
)

func IsValidRegistrationType(t string) bool {
	switch t {
	case RegistrationTypeIndividual, RegistrationTypeLodge, RegistrationTypeDelegation:
		return true
	default:
		return false
	}
}
