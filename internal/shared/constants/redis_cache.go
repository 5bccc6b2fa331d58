package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes the Redis cache keys and TTL values for LodgeTix.
// Pattern: lodgetix:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Static Data (Long TTL: rarely changes)
const (
	TTL_STATIC_LONG  = 24 * time.Hour // event catalogue metadata
	TTL_STATIC_SHORT = 6 * time.Hour  // user / attendee profiles
)

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_MEDIUM = 2 * time.Hour    // event details
	TTL_SEMI_STATIC_SHORT  = 1 * time.Hour    // event listings
	TTL_SEMI_STATIC_QUICK  = 15 * time.Minute // upcoming events, package lists
)

// Dynamic Data (Short TTL: changes frequently)
const (
	TTL_DYNAMIC_SHORT = 5 * time.Minute // registration wizard state
	TTL_DYNAMIC_QUICK = 2 * time.Minute // availability snapshots
)

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_SHORT = 30 * time.Second // live availability counts
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "lodgetix"
)

// ================== EVENTS MODULE ==================

func BuildEventKey(eventID string) string {
	return fmt.Sprintf("%s:events:detail:%s", CACHE_PREFIX, eventID)
}

func BuildEventListKey(page, limit int) string {
	return fmt.Sprintf("%s:events:list:%d:%d", CACHE_PREFIX, page, limit)
}

func BuildUpcomingEventsKey() string {
	return fmt.Sprintf("%s:events:upcoming", CACHE_PREFIX)
}

// ================== PACKAGES MODULE ==================

func BuildPackageKey(packageID string) string {
	return fmt.Sprintf("%s:packages:detail:%s", CACHE_PREFIX, packageID)
}

func BuildEventPackagesKey(eventID string) string {
	return fmt.Sprintf("%s:packages:event:%s", CACHE_PREFIX, eventID)
}

// ================== TICKETS MODULE ==================

func BuildAvailabilityKey(eventID, ticketDefinitionID string) string {
	return fmt.Sprintf("%s:tickets:availability:%s:%s", CACHE_PREFIX, eventID, ticketDefinitionID)
}

// ================== RESERVATION CACHE ==================
// Two separate keys per client; both must be present for a cached
// reservation to be considered valid.

func BuildReservationDataKey(clientID string) string {
	return fmt.Sprintf("%s:reservations:current:%s", CACHE_PREFIX, clientID)
}

func BuildReservationExpiryKey(clientID string) string {
	return fmt.Sprintf("%s:reservations:expiry:%s", CACHE_PREFIX, clientID)
}

func BuildRegistrationTypeKey(clientID string) string {
	return fmt.Sprintf("%s:registrations:type:%s", CACHE_PREFIX, clientID)
}

// ================== REALTIME PRESENCE ==================

func BuildPresenceSetKey(eventID string) string {
	return fmt.Sprintf("%s:presence:event:%s", CACHE_PREFIX, eventID)
}

func BuildPresenceEntryKey(eventID, clientID string) string {
	return fmt.Sprintf("%s:presence:entry:%s:%s", CACHE_PREFIX, eventID, clientID)
}

// ================== INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_EVENTS   = CACHE_PREFIX + ":events:*"
	PATTERN_INVALIDATE_PACKAGES = CACHE_PREFIX + ":packages:*"
)

// ================== AUTH / OTP ==================

func BuildOTPKey(email string) string {
	return fmt.Sprintf("%s:auth:otp:%s", CACHE_PREFIX, email)
}
