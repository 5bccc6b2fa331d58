package tickets

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// AtomicCounterOperations mirrors ticket counts into Redis so availability
// reads can skip Postgres. The database remains authoritative; these
// counters are advisory and rebuilt on drift.
type AtomicCounterOperations struct {
	redis *redis.Client
}

// NewAtomicCounterOperations creates a new atomic counter operations handler
func NewAtomicCounterOperations(redisClient *redis.Client) *AtomicCounterOperations {
	return &AtomicCounterOperations{
		redis: redisClient,
	}
}

func countsKey(eventID, ticketDefinitionID string) string {
	return fmt.Sprintf("lodgetix:tickets:counts:%s:%s", eventID, ticketDefinitionID)
}

// Lua script for atomically moving counts between statuses - prevents
// torn updates when reservations race with completions
const luaAtomicMoveCounts = `
-- KEYS[1] = counts hash key
-- ARGV[1] = from field
-- ARGV[2] = to field
-- ARGV[3] = quantity
-- ARGV[4] = ttl_seconds

local key = KEYS[1]
local from = ARGV[1]
local to = ARGV[2]
local qty = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

if redis.call("EXISTS", key) == 0 then
    -- Mirror not seeded; nothing to move
    return {0, "counts_not_seeded"}
end

local from_count = tonumber(redis.call("HGET", key, from)) or 0
if from_count < qty then
    -- Drift detected; clamp rather than going negative
    qty = from_count
end

redis.call("HINCRBY", key, from, -qty)
redis.call("HINCRBY", key, to, qty)
redis.call("EXPIRE", key, ttl)

return {1, qty}
`

// Lua script for seeding the counts mirror from an authoritative snapshot
const luaAtomicSeedCounts = `
-- KEYS[1] = counts hash key
-- ARGV[1] = available
-- ARGV[2] = reserved
-- ARGV[3] = sold
-- ARGV[4] = ttl_seconds

local key = KEYS[1]

redis.call("HMSET", key,
    "available", ARGV[1],
    "reserved", ARGV[2],
    "sold", ARGV[3]
)
redis.call("EXPIRE", key, tonumber(ARGV[4]))

return {1, "success"}
`

const countsMirrorTTLSeconds = 300

// MoveCounts atomically shifts `quantity` between two status counters
// (e.g. available -> reserved on claim, reserved -> sold on completion).
func (a *AtomicCounterOperations) MoveCounts(ctx context.Context, eventID, ticketDefinitionID, from, to string, quantity int) error {
	if a.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	keys := []string{countsKey(eventID, ticketDefinitionID)}
	args := []interface{}{
		from,
		to,
		strconv.Itoa(quantity),
		strconv.Itoa(countsMirrorTTLSeconds),
	}

	// Execute Lua script
	result, err := a.redis.EvalSha(ctx, luaAtomicMoveCounts, keys, args...).Result()
	if err != nil {
		// If script is not loaded, try to load and execute
		result, err = a.redis.Eval(ctx, luaAtomicMoveCounts, keys, args...).Result()
		if err != nil {
			return fmt.Errorf("failed to execute atomic count move: %w", err)
		}
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return fmt.Errorf("unexpected result format from Lua script")
	}

	success, ok := resultArray[0].(int64)
	if !ok {
		return fmt.Errorf("invalid success flag in Lua script result")
	}

	if success == 0 {
		// Mirror not seeded is a soft miss, not an error; the next read
		// seeds it from Postgres
		return nil
	}

	return nil
}

// SeedCounts writes an authoritative availability snapshot into the mirror
func (a *AtomicCounterOperations) SeedCounts(ctx context.Context, eventID, ticketDefinitionID string, availability *Availability) error {
	if a.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	keys := []string{countsKey(eventID, ticketDefinitionID)}
	args := []interface{}{
		strconv.Itoa(availability.Available),
		strconv.Itoa(availability.Reserved),
		strconv.Itoa(availability.Sold),
		strconv.Itoa(countsMirrorTTLSeconds),
	}

	_, err := a.redis.EvalSha(ctx, luaAtomicSeedCounts, keys, args...).Result()
	if err != nil {
		_, err = a.redis.Eval(ctx, luaAtomicSeedCounts, keys, args...).Result()
		if err != nil {
			return fmt.Errorf("failed to seed counts mirror: %w", err)
		}
	}

	return nil
}

// GetCounts reads the mirrored counts; returns nil on a miss
func (a *AtomicCounterOperations) GetCounts(ctx context.Context, eventID, ticketDefinitionID string) (*Availability, error) {
	if a.redis == nil {
		return nil, fmt.Errorf("redis client not available")
	}

	data, err := a.redis.HGetAll(ctx, countsKey(eventID, ticketDefinitionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil // mirror miss
	}

	availability := &Availability{}
	if v, err := strconv.Atoi(data["available"]); err == nil {
		availability.Available = v
	}
	if v, err := strconv.Atoi(data["reserved"]); err == nil {
		availability.Reserved = v
	}
	if v, err := strconv.Atoi(data["sold"]); err == nil {
		availability.Sold = v
	}

	return availability, nil
}

// InvalidateCounts drops the mirror for one scope, forcing a reseed
func (a *AtomicCounterOperations) InvalidateCounts(ctx context.Context, eventID, ticketDefinitionID string) error {
	if a.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	return a.redis.Del(ctx, countsKey(eventID, ticketDefinitionID)).Err()
}

// PreloadScripts loads Lua scripts into Redis for better performance
func (a *AtomicCounterOperations) PreloadScripts(ctx context.Context) error {
	if a.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	// Load count move script
	_, err := a.redis.ScriptLoad(ctx, luaAtomicMoveCounts).Result()
	if err != nil {
		return fmt.Errorf("failed to load count move script: %w", err)
	}

	// Load count seed script
	_, err = a.redis.ScriptLoad(ctx, luaAtomicSeedCounts).Result()
	if err != nil {
		return fmt.Errorf("failed to load count seed script: %w", err)
	}

	return nil
}
