package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// PresenceTracker keeps ephemeral per-client presence entries in Redis.
// Entries carry a TTL and disappear on their own when a client stops
// heartbeating; the event set is pruned lazily on read.
type PresenceTracker struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewPresenceTracker(redisClient *redis.Client, ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Join registers a client as viewing an event
func (p *PresenceTracker) Join(ctx context.Context, eventID, clientID, ticketDefinitionID string) error {
	entry := PresenceEntry{
		ClientID:           clientID,
		EventID:            eventID,
		TicketDefinitionID: ticketDefinitionID,
		ViewingSince:       nowMillis(),
		IsReserving:        false,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	pipe := p.redis.TxPipeline()
	pipe.Set(ctx, constants.BuildPresenceEntryKey(eventID, clientID), data, p.ttl)
	pipe.SAdd(ctx, constants.BuildPresenceSetKey(eventID), clientID)
	pipe.Expire(ctx, constants.BuildPresenceSetKey(eventID), p.ttl*2)
	_, err = pipe.Exec(ctx)
	return err
}

// Leave removes a client's presence entry
func (p *PresenceTracker) Leave(ctx context.Context, eventID, clientID string) error {
	pipe := p.redis.TxPipeline()
	pipe.Del(ctx, constants.BuildPresenceEntryKey(eventID, clientID))
	pipe.SRem(ctx, constants.BuildPresenceSetKey(eventID), clientID)
	_, err := pipe.Exec(ctx)
	return err
}

// SetReserving flips a client's reserving flag, preserving viewing_since
func (p *PresenceTracker) SetReserving(ctx context.Context, eventID, clientID string, reserving bool) error {
	key := constants.BuildPresenceEntryKey(eventID, clientID)

	data, err := p.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			// Client joined and expired, or never joined; re-register
			if joinErr := p.Join(ctx, eventID, clientID, ""); joinErr != nil {
				return joinErr
			}
			data, err = p.redis.Get(ctx, key).Result()
			if err != nil {
				return err
			}
		} else {
			return err
		}
	}

	var entry PresenceEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return fmt.Errorf("failed to unmarshal presence entry: %w", err)
	}

	entry.IsReserving = reserving

	updated, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return p.redis.Set(ctx, key, updated, p.ttl).Err()
}

// Heartbeat refreshes a client's entry TTL
func (p *PresenceTracker) Heartbeat(ctx context.Context, eventID, clientID string) error {
	ok, err := p.redis.Expire(ctx, constants.BuildPresenceEntryKey(eventID, clientID), p.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		// Entry expired between heartbeats; rejoin
		return p.Join(ctx, eventID, clientID, "")
	}
	return nil
}

// Counts aggregates viewers and reservers for one event. Stale set members
// whose entries have expired are pruned as a side effect.
func (p *PresenceTracker) Counts(ctx context.Context, eventID string) (*PresenceUpdate, error) {
	setKey := constants.BuildPresenceSetKey(eventID)

	clientIDs, err := p.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		if err == redis.Nil {
			return &PresenceUpdate{Timestamp: nowMillis()}, nil
		}
		return nil, err
	}

	update := &PresenceUpdate{Timestamp: nowMillis()}
	var stale []interface{}

	for _, clientID := range clientIDs {
		data, err := p.redis.Get(ctx, constants.BuildPresenceEntryKey(eventID, clientID)).Result()
		if err == redis.Nil {
			stale = append(stale, clientID)
			continue
		}
		if err != nil {
			return nil, err
		}

		var entry PresenceEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			stale = append(stale, clientID)
			continue
		}

		update.TotalViewers++
		if entry.IsReserving {
			update.TotalReserving++
		}
	}

	if len(stale) > 0 {
		if err := p.redis.SRem(ctx, setKey, stale...).Err(); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to prune stale presence entries", "event_id", eventID)
		}
	}

	return update, nil
}
