package reservations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lodgetix/internal/shared/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
	fail error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	val, ok := m.data[key]
	if !ok {
		return "", errKeyMissing
	}
	return val, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) SetMulti(ctx context.Context, pairs map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for key, value := range pairs {
		m.data[key] = value
	}
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func cachedHold(expiresAt time.Time) *CachedReservation {
	return &CachedReservation{
		ReservationID:      "res-1",
		EventID:            "E1",
		TicketDefinitionID: "T1",
		TicketIDs:          []string{"ticket-1", "ticket-2"},
		Quantity:           2,
		ExpiresAt:          expiresAt,
	}
}

func TestReservationStoreRoundTrip(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	require.NoError(t, store.Store(context.Background(), "client-1", cachedHold(time.Now().Add(15*time.Minute))))

	got, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "res-1", got.ReservationID)
	assert.Equal(t, []string{"ticket-1", "ticket-2"}, got.TicketIDs)
	assert.False(t, got.StoredAt.IsZero())
}

func TestReservationStoreWritesBothKeys(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	require.NoError(t, store.Store(context.Background(), "client-1", cachedHold(time.Now().Add(15*time.Minute))))

	assert.True(t, kv.has(constants.BuildReservationDataKey("client-1")))
	assert.True(t, kv.has(constants.BuildReservationExpiryKey("client-1")))
}

func TestReservationStoreGetPastExpiryPurgesBothKeys(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	require.NoError(t, store.Store(context.Background(), "client-1", cachedHold(time.Now().Add(-time.Minute))))

	got, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The expired hold is gone, not just hidden
	assert.False(t, kv.has(constants.BuildReservationDataKey("client-1")))
	assert.False(t, kv.has(constants.BuildReservationExpiryKey("client-1")))
}

func TestReservationStorePayloadWithoutExpiryIsPurged(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	require.NoError(t, kv.Set(context.Background(), constants.BuildReservationDataKey("client-1"), `{"reservation_id":"res-1"}`, time.Minute))

	got, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, kv.has(constants.BuildReservationDataKey("client-1")))
}

func TestReservationStoreBackendFailureIsStorageUnavailable(t *testing.T) {
	kv := newMemoryKV()
	kv.fail = fmt.Errorf("connection refused")
	store := newReservationStore(kv, 30*time.Minute)

	err := store.Store(context.Background(), "client-1", cachedHold(time.Now().Add(time.Minute)))
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = store.Get(context.Background(), "client-1")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestReservationStoreClearRemovesBothKeys(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	require.NoError(t, store.Store(context.Background(), "client-1", cachedHold(time.Now().Add(time.Minute))))
	require.NoError(t, store.Clear(context.Background(), "client-1"))

	assert.False(t, kv.has(constants.BuildReservationDataKey("client-1")))
	assert.False(t, kv.has(constants.BuildReservationExpiryKey("client-1")))
}

func TestReservationStoreRegistrationType(t *testing.T) {
	kv := newMemoryKV()
	store := newReservationStore(kv, 30*time.Minute)

	got, err := store.GetRegistrationType(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.StoreRegistrationType(context.Background(), "client-1", RegistrationTypeLodge))

	got, err = store.GetRegistrationType(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, RegistrationTypeLodge, got)
}
