package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lodgetix/internal/auth"
	"lodgetix/internal/realtime"
	"lodgetix/internal/shared/config"
	"lodgetix/internal/shared/constants"
	"lodgetix/internal/tickets"
	"lodgetix/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errInvalidID = errors.New("identifier is not a valid UUID")

// TicketEngine is the orchestrator's view of the reservation engine.
// String-keyed so the orchestrator can apply its identifier fallback
// rules before the engine sees anything.
type TicketEngine interface {
	ReserveTickets(ctx context.Context, eventID, ticketDefinitionID string, quantity int, holdDuration time.Duration) ([]tickets.ReservedTicket, error)
	CompleteReservation(ctx context.Context, reservationID, attendeeID string) ([]string, error)
	GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID string) (*tickets.Availability, error)
}

// ChannelSubscriber is the orchestrator's view of the realtime channel
// layer
type ChannelSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, realtime.UnsubscribeFunc, error)
}

// SessionBootstrapper mints an anonymous backend identity for a reserve
// call that arrived without one. Implemented by SessionAdapter over the
// auth service; injected via setter to keep startup wiring order free.
type SessionBootstrapper interface {
	SignInAnonymously(ctx context.Context) (*BootstrappedSession, error)
}

// PresenceSetter flips a client's reserving flag in the event's presence
// set. Implemented by the websocket hub.
type PresenceSetter interface {
	SetReserving(ctx context.Context, eventID, clientID string, reserving bool)
}

// Service is the long-lived reservation orchestrator. One instance is
// constructed at startup and injected wherever the reservation flow is
// needed; Dispose tears down every channel it opened.
//
// Operations never panic or return raw errors across this boundary;
// outcomes are Result shapes with a typed failure kind.
type Service struct {
	engine   TicketEngine
	manager  ChannelSubscriber
	store    *reservationStore
	emitter  *realtime.PresenceEmitter
	sessions SessionBootstrapper
	presence PresenceSetter
	cfg      config.ReservationConfig

	mu       sync.Mutex
	channels map[string]realtime.UnsubscribeFunc
	nextSub  uint64
	disposed bool
}

func NewService(engine TicketEngine, manager ChannelSubscriber, emitter *realtime.PresenceEmitter, redisClient *redis.Client, cfg config.ReservationConfig) *Service {
	return &Service{
		engine:   engine,
		manager:  manager,
		store:    newReservationStore(&redisKeyValue{client: redisClient}, cfg.CacheTTL),
		emitter:  emitter,
		cfg:      cfg,
		channels: make(map[string]realtime.UnsubscribeFunc),
	}
}

// SetSessionBootstrapper wires the anonymous session path into reserve
// calls that arrive without an identity
func (s *Service) SetSessionBootstrapper(sessions SessionBootstrapper) {
	s.sessions = sessions
}

// SetPresence wires the reserving-flag toggle into the reserve path
func (s *Service) SetPresence(presence PresenceSetter) {
	s.presence = presence
}

//  LIFECYCLE

// InitializeRealtimeConnections opens the presence and system channels for
// an event. Idempotent: calling twice for the same event is a no-op, the
// channels are keyed per event.
func (s *Service) InitializeRealtimeConnections(ctx context.Context, eventID string) *Failure {
	if eventID == "" {
		return &Failure{Kind: FailureValidation, Message: "event ID is required"}
	}

	for _, channel := range []string{
		constants.BuildPresenceChannel(eventID),
		constants.BuildSystemChannel(eventID),
	} {
		if failure := s.openTrackedChannel(ctx, channel, channel); failure != nil {
			return failure
		}
	}

	return nil
}

// CleanupRealtimeConnections tears down every channel the orchestrator
// opened. The active-channel map is empty afterwards.
func (s *Service) CleanupRealtimeConnections() {
	s.mu.Lock()
	unsubs := make([]realtime.UnsubscribeFunc, 0, len(s.channels))
	for key, unsub := range s.channels {
		unsubs = append(unsubs, unsub)
		delete(s.channels, key)
	}
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Dispose releases all resources. The service must not be used afterwards.
func (s *Service) Dispose() {
	s.CleanupRealtimeConnections()
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

// ActiveChannels lists the keys of channels the orchestrator holds open
func (s *Service) ActiveChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.channels))
	for key := range s.channels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// openTrackedChannel subscribes and records the handle under key.
// Existing keys are left alone, which is what makes initialization
// idempotent.
func (s *Service) openTrackedChannel(ctx context.Context, key, channel string) *Failure {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return &Failure{Kind: FailureInternal, Message: "orchestrator has been disposed"}
	}
	if _, exists := s.channels[key]; exists {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, unsub, err := s.manager.Subscribe(ctx, channel)
	if err != nil {
		return subscribeFailure(channel, err)
	}

	s.mu.Lock()
	if _, exists := s.channels[key]; exists {
		// Lost the race; keep the first subscription
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.channels[key] = unsub
	s.mu.Unlock()

	return nil
}

//  RESERVATION OPERATIONS

// ReserveTickets holds `quantity` tickets for the client. Validation
// failures are reported before any backend call; an empty event ID
// degrades to ticket-definition scoping. A call with no client identity
// mints an anonymous session first and returns it with the result.
func (s *Service) ReserveTickets(ctx context.Context, clientID, eventID, ticketDefinitionID string, quantity int) *ReserveResult {
	if ticketDefinitionID == "" {
		return reserveFailure(FailureValidation, "ticket definition ID is required")
	}
	if quantity <= 0 {
		return reserveFailure(FailureValidation, "quantity must be a positive integer")
	}
	if eventID == "" {
		// Degrade to ticket-only scoping
		eventID = ticketDefinitionID
	}

	var session *BootstrappedSession
	if clientID == "" && s.sessions != nil {
		minted, err := s.sessions.SignInAnonymously(ctx)
		if err != nil {
			// The hold is still granted; it just cannot be cached or
			// tracked against an identity
			logger.GetDefault().WithError(err).Warn("anonymous session bootstrap failed")
		} else {
			session = minted
			clientID = minted.ClientID
		}
	}

	// Best-effort reserving flag; the presence channel shows other
	// viewers that this client is mid-checkout
	if s.presence != nil && clientID != "" {
		s.presence.SetReserving(ctx, eventID, clientID, true)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	rows, err := s.engine.ReserveTickets(opCtx, eventID, ticketDefinitionID, quantity, s.cfg.DefaultHoldDuration)
	if err != nil {
		s.revertReserving(ctx, eventID, clientID)
		return reserveFailureFromError(err)
	}
	if len(rows) == 0 {
		s.revertReserving(ctx, eventID, clientID)
		return reserveFailure(FailureInternal, "engine returned no rows")
	}

	reservations := make([]Reservation, len(rows))
	ticketIDs := make([]string, len(rows))
	for i, row := range rows {
		reservations[i] = Reservation{
			TicketID:           row.TicketID,
			ReservationID:      row.ReservationID,
			ExpiresAt:          row.ExpiresAt,
			EventID:            eventID,
			TicketDefinitionID: ticketDefinitionID,
		}
		ticketIDs[i] = row.TicketID
	}

	// Cache the hold for later wizard steps; a cache failure does not
	// undo the reservation
	if clientID != "" {
		cached := &CachedReservation{
			ReservationID:      rows[0].ReservationID,
			EventID:            eventID,
			TicketDefinitionID: ticketDefinitionID,
			TicketIDs:          ticketIDs,
			Quantity:           quantity,
			ExpiresAt:          rows[0].ExpiresAt,
		}
		if err := s.store.Store(ctx, clientID, cached); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to cache reservation", "client_id", clientID)
		}
	}

	return &ReserveResult{Success: true, Reservations: reservations, Session: session}
}

func (s *Service) revertReserving(ctx context.Context, eventID, clientID string) {
	if s.presence != nil && clientID != "" {
		s.presence.SetReserving(ctx, eventID, clientID, false)
	}
}

// CompleteReservation finalizes a hold for an attendee. On success only
// ticket IDs come back; expiry and scope are zeroed by design.
func (s *Service) CompleteReservation(ctx context.Context, clientID, reservationID, attendeeID string) *CompleteResult {
	if reservationID == "" {
		return completeFailure(FailureValidation, "reservation ID is required")
	}
	if attendeeID == "" {
		return completeFailure(FailureValidation, "attendee ID is required")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	ticketIDs, err := s.engine.CompleteReservation(opCtx, reservationID, attendeeID)
	if err != nil {
		return completeFailureFromError(err)
	}

	if clientID != "" {
		if err := s.store.Clear(ctx, clientID); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to clear cached reservation", "client_id", clientID)
		}
	}

	return &CompleteResult{
		Success:       true,
		ReservationID: reservationID,
		TicketIDs:     ticketIDs,
	}
}

// GetTicketAvailability reads counts for one scope. Fails open: any
// backend error yields zero counts with the degraded flag set.
func (s *Service) GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID string) *AvailabilitySnapshot {
	if ticketDefinitionID == "" {
		return &AvailabilitySnapshot{Degraded: true}
	}
	if eventID == "" {
		eventID = ticketDefinitionID
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	availability, err := s.engine.GetTicketAvailability(opCtx, eventID, ticketDefinitionID)
	if err != nil {
		logger.GetDefault().WithError(err).Warn("availability read failed, failing open",
			"event_id", eventID, "ticket_definition_id", ticketDefinitionID)
		return &AvailabilitySnapshot{Degraded: true}
	}

	return &AvailabilitySnapshot{
		Available: availability.Available,
		Reserved:  availability.Reserved,
		Sold:      availability.Sold,
	}
}

//  SUBSCRIPTIONS

// SubscribeToAvailabilityChanges watches one (event, definition) scope.
// The callback fires once immediately with a snapshot, then again with
// fresh counts on every row change. The returned handle removes this
// subscription from the active-channel map; independent subscriptions to
// the same scope do not collide.
func (s *Service) SubscribeToAvailabilityChanges(ctx context.Context, eventID, ticketDefinitionID string, callback func(AvailabilitySnapshot)) (func(), *Failure) {
	if ticketDefinitionID == "" {
		return nil, &Failure{Kind: FailureValidation, Message: "ticket definition ID is required"}
	}
	if eventID == "" {
		eventID = ticketDefinitionID
	}

	channel := constants.BuildAvailabilityChannel(eventID, ticketDefinitionID)

	ch, unsub, err := s.manager.Subscribe(ctx, channel)
	if err != nil {
		return nil, subscribeFailure(channel, err)
	}

	key := s.trackSubscription(channel, unsub)

	// Initial snapshot on successful subscribe
	callback(*s.GetTicketAvailability(ctx, eventID, ticketDefinitionID))

	go func() {
		for range ch {
			// Row changed; re-query and hand fresh counts to the caller
			callback(*s.GetTicketAvailability(context.Background(), eventID, ticketDefinitionID))
		}
	}()

	return func() { s.releaseSubscription(key) }, nil
}

// SubscribeToTicketChanges watches the ticket-updates channel for one
// reservation
func (s *Service) SubscribeToTicketChanges(ctx context.Context, reservationID string, callback func(realtime.TicketUpdateMessage)) (func(), *Failure) {
	if reservationID == "" {
		return nil, &Failure{Kind: FailureValidation, Message: "reservation ID is required"}
	}

	channel := constants.BuildTicketUpdatesChannel(reservationID)

	ch, unsub, err := s.manager.Subscribe(ctx, channel)
	if err != nil {
		return nil, subscribeFailure(channel, err)
	}

	key := s.trackSubscription(channel, unsub)

	go func() {
		for payload := range ch {
			var envelope struct {
				Event   string                      `json:"event"`
				Payload realtime.TicketUpdateMessage `json:"payload"`
			}
			if err := json.Unmarshal(payload, &envelope); err != nil {
				logger.GetDefault().WithError(err).Warn("malformed ticket update", "channel", channel)
				continue
			}
			callback(envelope.Payload)
		}
	}()

	return func() { s.releaseSubscription(key) }, nil
}

// PresenceUpdates exposes the typed presence emitter. Consumers get a
// channel of aggregate counts and a deterministic unsubscribe.
func (s *Service) PresenceUpdates() (<-chan realtime.PresenceUpdate, func()) {
	return s.emitter.Subscribe()
}

func (s *Service) trackSubscription(channel string, unsub realtime.UnsubscribeFunc) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	key := fmt.Sprintf("%s#%d", channel, s.nextSub)
	s.channels[key] = unsub
	return key
}

func (s *Service) releaseSubscription(key string) {
	s.mu.Lock()
	unsub, ok := s.channels[key]
	if ok {
		delete(s.channels, key)
	}
	s.mu.Unlock()

	if ok {
		unsub()
	}
}

//  CLIENT STATE

// GetCurrentReservation returns the client's cached hold, nil when none
// is stored or it has expired
func (s *Service) GetCurrentReservation(ctx context.Context, clientID string) (*CachedReservation, *Failure) {
	cached, err := s.store.Get(ctx, clientID)
	if err != nil {
		return nil, &Failure{Kind: FailureStorageUnavailable, Message: "reservation storage unavailable"}
	}
	return cached, nil
}

// ClearCurrentReservation drops the client's cached hold. Used when a
// registration confirms under a different identity than the one the
// wizard reserved with.
func (s *Service) ClearCurrentReservation(ctx context.Context, clientID string) *Failure {
	if clientID == "" {
		return nil
	}
	if err := s.store.Clear(ctx, clientID); err != nil {
		return &Failure{Kind: FailureStorageUnavailable, Message: "reservation storage unavailable"}
	}
	return nil
}

// SetRegistrationType records the wizard flow choice for the client
func (s *Service) SetRegistrationType(ctx context.Context, clientID, registrationType string) *Failure {
	if !IsValidRegistrationType(registrationType) {
		return &Failure{Kind: FailureValidation, Message: "registration type must be individual, lodge or delegation"}
	}
	if err := s.store.StoreRegistrationType(ctx, clientID, registrationType); err != nil {
		return &Failure{Kind: FailureStorageUnavailable, Message: "reservation storage unavailable"}
	}
	return nil
}

// GetRegistrationType returns the stored flow choice, "" when unset
func (s *Service) GetRegistrationType(ctx context.Context, clientID string) (string, *Failure) {
	registrationType, err := s.store.GetRegistrationType(ctx, clientID)
	if err != nil {
		return "", &Failure{Kind: FailureStorageUnavailable, Message: "reservation storage unavailable"}
	}
	return registrationType, nil
}

//  FAILURE MAPPING

func subscribeFailure(channel string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimedOut, Message: fmt.Sprintf("subscribing to %s timed out", channel)}
	}
	return &Failure{Kind: FailureInternal, Message: fmt.Sprintf("failed to subscribe to %s", channel)}
}

func reserveFailure(kind FailureKind, message string) *ReserveResult {
	return &ReserveResult{Failure: &Failure{Kind: kind, Message: message}}
}

func completeFailure(kind FailureKind, message string) *CompleteResult {
	return &CompleteResult{Failure: &Failure{Kind: kind, Message: message}}
}

func reserveFailureFromError(err error) *ReserveResult {
	kind, message := classifyEngineError(err)
	return reserveFailure(kind, message)
}

func completeFailureFromError(err error) *CompleteResult {
	kind, message := classifyEngineError(err)
	return completeFailure(kind, message)
}

func classifyEngineError(err error) (FailureKind, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimedOut, "operation timed out"
	case errors.Is(err, tickets.ErrInsufficientAvailability):
		return FailureInsufficientStock, "not enough tickets available"
	case errors.Is(err, tickets.ErrReservationNotFound):
		return FailureNotFound, "reservation not found"
	case errors.Is(err, tickets.ErrReservationExpired):
		return FailureExpired, "reservation has expired"
	case errors.Is(err, tickets.ErrInvalidQuantity), errors.Is(err, errInvalidID), errors.Is(err, tickets.ErrEventNotBookable):
		return FailureValidation, err.Error()
	case errors.Is(err, ErrStorageUnavailable):
		return FailureStorageUnavailable, "reservation storage unavailable"
	default:
		return FailureInternal, "reservation backend error"
	}
}

//  ENGINE ADAPTER

// EngineAdapter bridges the string-keyed orchestrator interface to the
// UUID-keyed ticket engine
type EngineAdapter struct {
	service tickets.Service
}

func NewEngineAdapter(service tickets.Service) *EngineAdapter {
	return &EngineAdapter{service: service}
}

func (a *EngineAdapter) ReserveTickets(ctx context.Context, eventID, ticketDefinitionID string, quantity int, holdDuration time.Duration) ([]tickets.ReservedTicket, error) {
	eventUUID, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: event ID %q", errInvalidID, eventID)
	}
	definitionUUID, err := uuid.Parse(ticketDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket definition ID %q", errInvalidID, ticketDefinitionID)
	}
	return a.service.ReserveTickets(ctx, eventUUID, definitionUUID, quantity, holdDuration)
}

func (a *EngineAdapter) CompleteReservation(ctx context.Context, reservationID, attendeeID string) ([]string, error) {
	reservationUUID, err := uuid.Parse(reservationID)
	if err != nil {
		return nil, fmt.Errorf("%w: reservation ID %q", errInvalidID, reservationID)
	}
	attendeeUUID, err := uuid.Parse(attendeeID)
	if err != nil {
		return nil, fmt.Errorf("%w: attendee ID %q", errInvalidID, attendeeID)
	}
	return a.service.CompleteReservation(ctx, reservationUUID, attendeeUUID)
}

func (a *EngineAdapter) GetTicketAvailability(ctx context.Context, eventID, ticketDefinitionID string) (*tickets.Availability, error) {
	eventUUID, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: event ID %q", errInvalidID, eventID)
	}
	definitionUUID, err := uuid.Parse(ticketDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket definition ID %q", errInvalidID, ticketDefinitionID)
	}
	return a.service.GetTicketAvailability(ctx, eventUUID, definitionUUID)
}

//  SESSION ADAPTER

// SessionAdapter bridges the auth service to the orchestrator's
// anonymous bootstrap seam
type SessionAdapter struct {
	service auth.Service
}

func NewSessionAdapter(service auth.Service) *SessionAdapter {
	return &SessionAdapter{service: service}
}

func (a *SessionAdapter) SignInAnonymously(ctx context.Context) (*BootstrappedSession, error) {
	resp, err := a.service.SignInAnonymously(ctx)
	if err != nil {
		return nil, err
	}
	return &BootstrappedSession{
		ClientID:     resp.User.ID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}
