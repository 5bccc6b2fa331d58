package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusIsValid(t *testing.T) {
	for _, status := range []EventStatus{EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted} {
		assert.True(t, status.IsValid(), string(status))
	}
	assert.False(t, EventStatus("postponed").IsValid())
}

func TestEventStatusCapabilities(t *testing.T) {
	assert.True(t, EventStatusDraft.CanBeUpdated())
	assert.True(t, EventStatusPublished.CanBeUpdated())
	assert.False(t, EventStatusCancelled.CanBeUpdated())
	assert.False(t, EventStatusCompleted.CanBeUpdated())

	assert.True(t, EventStatusDraft.CanBeDeleted())
	assert.False(t, EventStatusPublished.CanBeDeleted())

	// Only published events take reservations
	assert.True(t, EventStatusPublished.CanAcceptRegistrations())
	assert.False(t, EventStatusDraft.CanAcceptRegistrations())
	assert.False(t, EventStatusCancelled.CanAcceptRegistrations())
	assert.False(t, EventStatusCompleted.CanAcceptRegistrations())
}
