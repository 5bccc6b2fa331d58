package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Channel names are consumed by the wizard frontend; any drift here breaks
// deployed clients.
func TestChannelNamesAreStable(t *testing.T) {
	assert.Equal(t, "presence-tickets-E1", BuildPresenceChannel("E1"))
	assert.Equal(t, "system-tickets-E1", BuildSystemChannel("E1"))
	assert.Equal(t, "ticket-updates-res-9", BuildTicketUpdatesChannel("res-9"))
	assert.Equal(t, "availability-E1-T2", BuildAvailabilityChannel("E1", "T2"))
}

func TestEventNamesAreStable(t *testing.T) {
	assert.Equal(t, "ticket-system-status", SystemStatusEventName)
	assert.Equal(t, "ticket-presence-update", PresenceUpdateEventName)
}
