package notifications

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsDefaultPriorityByType(t *testing.T) {
	cases := []struct {
		notType  NotificationType
		priority NotificationPriority
	}{
		{NotificationTypeOneTimePassword, NotificationPriorityCritical},
		{NotificationTypeRegistrationConfirmed, NotificationPriorityHigh},
		{NotificationTypeReservationExpiring, NotificationPriorityHigh},
		{NotificationTypeRegistrationCancelled, NotificationPriorityMedium},
	}

	for _, tc := range cases {
		notification := NewNotificationBuilder().WithType(tc.notType).Build()
		assert.Equal(t, tc.priority, notification.Priority, string(tc.notType))
	}
}

func TestBuilderPopulatesContext(t *testing.T) {
	userID := uuid.New()
	eventID := uuid.New()
	registrationID := uuid.New()

	notification := NewNotificationBuilder().
		WithType(NotificationTypeRegistrationConfirmed).
		WithRecipient(userID, "w.harris@lodgetix.test", "William Harris").
		WithSubject("Registration confirmed").
		WithEventContext(eventID).
		WithRegistrationContext(registrationID).
		WithTemplateData(map[string]interface{}{"reference": "LTX-20260831-ABCDEF"}).
		Build()

	assert.Equal(t, NotificationStatusPending, notification.Status)
	assert.Equal(t, userID, notification.RecipientID)
	assert.Equal(t, "w.harris@lodgetix.test", notification.RecipientEmail)
	require.NotNil(t, notification.EventID)
	assert.Equal(t, eventID, *notification.EventID)
	require.NotNil(t, notification.RegistrationID)
	assert.Equal(t, registrationID, *notification.RegistrationID)
	assert.Equal(t, "LTX-20260831-ABCDEF", notification.TemplateData["reference"])
	assert.Equal(t, userID.String(), notification.GetPartitionKey())
}

func TestExpiryAndRetrySemantics(t *testing.T) {
	notification := NewNotificationBuilder().
		WithType(NotificationTypeOneTimePassword).
		WithExpiration(time.Now().Add(10 * time.Minute)).
		Build()

	assert.False(t, notification.IsExpired())
	assert.False(t, notification.ShouldRetry(), "pending notifications are not retried")

	notification.MarkFailed(errors.New("smtp timeout"))
	assert.Equal(t, NotificationStatusFailed, notification.Status)
	require.NotNil(t, notification.LastError)
	assert.True(t, notification.ShouldRetry())

	notification.RetryCount = notification.MaxRetries
	assert.False(t, notification.ShouldRetry(), "retry budget exhausted")

	// An expired OTP is never retried even with budget left
	notification.RetryCount = 0
	past := time.Now().Add(-time.Minute)
	notification.ExpiresAt = &past
	assert.True(t, notification.IsExpired())
	assert.False(t, notification.ShouldRetry())
}

func TestMarkSentStampsTimestamp(t *testing.T) {
	notification := NewNotificationBuilder().WithType(NotificationTypeRegistrationConfirmed).Build()

	notification.MarkSent()

	assert.Equal(t, NotificationStatusSent, notification.Status)
	require.NotNil(t, notification.SentAt)
	assert.WithinDuration(t, time.Now(), *notification.SentAt, time.Second)
}
