package registrations

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusConfirmed, false},
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDraft, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusDraft, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusPending, StatusConfirmed, StatusCancelled} {
		assert.True(t, status.IsValid(), string(status))
	}
	assert.False(t, Status("archived").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestGenerateReferenceFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^LTX-\d{8}-[A-Z]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		reference, err := generateReference()
		require.NoError(t, err)
		assert.Regexp(t, pattern, reference)
		seen[reference] = true
	}

	// 26^6 combinations per day; 50 draws colliding would indicate a
	// broken random source
	assert.Greater(t, len(seen), 45)
}
