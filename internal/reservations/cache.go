package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ErrStorageUnavailable marks a reservation cache failure distinctly from
// a plain miss so callers can tell "nothing stored" from "storage down".
var ErrStorageUnavailable = errors.New("reservation storage unavailable")

var errKeyMissing = errors.New("key not present")

// keyValueStore is the slice of Redis the reservation store uses, carved
// out so the expiry semantics are testable without a server. A miss is
// reported as errKeyMissing, anything else is a backend failure.
type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetMulti(ctx context.Context, pairs map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// redisKeyValue adapts go-redis to the keyValueStore seam. Multi-key
// writes and deletes go through a transactional pipeline.
type redisKeyValue struct {
	client *redis.Client
}

func (r *redisKeyValue) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errKeyMissing
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisKeyValue) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisKeyValue) SetMulti(ctx context.Context, pairs map[string]string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	for key, value := range pairs {
		pipe.Set(ctx, key, value, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisKeyValue) Delete(ctx context.Context, keys ...string) error {
	pipe := r.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// reservationStore keeps the client's current reservation between wizard
// steps. Two keys per client: the payload and a standalone expiry stamp.
// A read with a past expiry purges both keys and reports a miss (lazy
// purge); a missing expiry with a present payload is treated as corrupt
// and purged the same way.
type reservationStore struct {
	kv  keyValueStore
	ttl time.Duration
}

func newReservationStore(kv keyValueStore, ttl time.Duration) *reservationStore {
	return &reservationStore{
		kv:  kv,
		ttl: ttl,
	}
}

// Store writes both keys for the client. The redundant expiry key lets
// reads check validity without unmarshaling the payload.
func (s *reservationStore) Store(ctx context.Context, clientID string, reservation *CachedReservation) error {
	reservation.StoredAt = time.Now()

	data, err := json.Marshal(reservation)
	if err != nil {
		return err
	}

	pairs := map[string]string{
		constants.BuildReservationDataKey(clientID):   string(data),
		constants.BuildReservationExpiryKey(clientID): reservation.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if err := s.kv.SetMulti(ctx, pairs, s.ttl); err != nil {
		return ErrStorageUnavailable
	}
	return nil
}

// Get returns the client's cached reservation, or nil on a miss. Expired
// payloads are purged on read.
func (s *reservationStore) Get(ctx context.Context, clientID string) (*CachedReservation, error) {
	expiryRaw, err := s.kv.Get(ctx, constants.BuildReservationExpiryKey(clientID))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			// Payload without expiry is corrupt; purge defensively
			s.purge(ctx, clientID)
			return nil, nil
		}
		return nil, ErrStorageUnavailable
	}

	expiresAt, err := time.Parse(time.RFC3339, expiryRaw)
	if err != nil {
		s.purge(ctx, clientID)
		return nil, nil
	}

	if time.Now().After(expiresAt) {
		// Lazy purge of an expired hold
		s.purge(ctx, clientID)
		return nil, nil
	}

	data, err := s.kv.Get(ctx, constants.BuildReservationDataKey(clientID))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			s.purge(ctx, clientID)
			return nil, nil
		}
		return nil, ErrStorageUnavailable
	}

	var reservation CachedReservation
	if err := json.Unmarshal([]byte(data), &reservation); err != nil {
		s.purge(ctx, clientID)
		return nil, nil
	}

	return &reservation, nil
}

// Clear removes both keys for the client
func (s *reservationStore) Clear(ctx context.Context, clientID string) error {
	err := s.kv.Delete(ctx,
		constants.BuildReservationDataKey(clientID),
		constants.BuildReservationExpiryKey(clientID))
	if err != nil {
		return ErrStorageUnavailable
	}
	return nil
}

func (s *reservationStore) purge(ctx context.Context, clientID string) {
	if err := s.Clear(ctx, clientID); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to purge stale reservation cache", "client_id", clientID)
	}
}

// StoreRegistrationType persists the wizard flow choice for the client
func (s *reservationStore) StoreRegistrationType(ctx context.Context, clientID, registrationType string) error {
	if err := s.kv.Set(ctx, constants.BuildRegistrationTypeKey(clientID), registrationType, s.ttl); err != nil {
		return ErrStorageUnavailable
	}
	return nil
}

// GetRegistrationType returns the stored flow choice, or "" on a miss
func (s *reservationStore) GetRegistrationType(ctx context.Context, clientID string) (string, error) {
	val, err := s.kv.Get(ctx, constants.BuildRegistrationTypeKey(clientID))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			return "", nil
		}
		return "", ErrStorageUnavailable
	}
	return val, nil
}
