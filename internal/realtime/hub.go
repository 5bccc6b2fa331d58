package realtime

import (
	"context"
	"sync"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/logger"
)

// Hub maintains connected websocket clients grouped by event and routes
// presence updates and system broadcasts to them. One hub serves the whole
// process; clients register with the event they are viewing.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan eventMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	tracker *PresenceTracker
	emitter *PresenceEmitter
	manager *ChannelManager

	// One relay per event bridges the Redis system channel to clients
	relayMu sync.Mutex
	relays  map[string]UnsubscribeFunc
}

// eventMessage is a payload addressed to every client of one event
type eventMessage struct {
	eventID string
	message Message
}

// Message is the wire format pushed to websocket clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Websocket message types
const (
	MessageTypePresenceUpdate = constants.PresenceUpdateEventName
	MessageTypeSystemStatus   = constants.SystemStatusEventName
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeStartReserving = "start_reserving"
	MessageTypeStopReserving  = "stop_reserving"
)

func NewHub(tracker *PresenceTracker, emitter *PresenceEmitter, manager *ChannelManager, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan eventMessage, buffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		tracker:    tracker,
		emitter:    emitter,
		manager:    manager,
		relays:     make(map[string]UnsubscribeFunc),
	}
}

// RunWithContext drives the hub until the context is canceled. Lifecycle
// events take priority over broadcasts so client state stays consistent.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown first
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		// Lifecycle events before broadcasts
		select {
		case client := <-h.Register:
			h.handleRegister(ctx, client)
			continue
		case client := <-h.Unregister:
			h.handleUnregister(ctx, client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.handleRegister(ctx, client)
		case client := <-h.Unregister:
			h.handleUnregister(ctx, client)
		case msg := <-h.broadcast:
			h.broadcastToEvent(msg)
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	if err := h.tracker.Join(ctx, client.eventID, client.clientID, client.ticketDefinitionID); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to register presence", "client_id", client.clientID)
	}

	h.ensureSystemRelay(ctx, client.eventID)
	h.publishPresence(ctx, client.eventID)

	logger.GetDefault().Info("websocket client connected", "client_id", client.clientID, "event_id", client.eventID, "total_clients", total)
}

func (h *Hub) handleUnregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	remaining := h.countForEventLocked(client.eventID)
	h.mu.Unlock()

	if err := h.tracker.Leave(ctx, client.eventID, client.clientID); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to remove presence", "client_id", client.clientID)
	}

	if remaining == 0 {
		h.dropSystemRelay(client.eventID)
	}

	h.publishPresence(ctx, client.eventID)

	logger.GetDefault().Info("websocket client disconnected", "client_id", client.clientID, "event_id", client.eventID, "total_clients", total)
}

// countForEventLocked counts clients viewing an event; caller holds h.mu
func (h *Hub) countForEventLocked(eventID string) int {
	count := 0
	for client := range h.clients {
		if client.eventID == eventID {
			count++
		}
	}
	return count
}

// publishPresence recomputes aggregate counts and pushes them to the
// event's clients and to in-process emitter listeners
func (h *Hub) publishPresence(ctx context.Context, eventID string) {
	update, err := h.tracker.Counts(ctx, eventID)
	if err != nil {
		logger.GetDefault().WithError(err).Warn("failed to compute presence counts", "event_id", eventID)
		return
	}

	h.emitter.Emit(*update)
	h.BroadcastToEvent(eventID, Message{Type: MessageTypePresenceUpdate, Data: update})

	// Mirror onto the Redis presence channel for other processes
	if err := h.manager.Publish(ctx, constants.BuildPresenceChannel(eventID),
		Envelope{Event: constants.PresenceUpdateEventName, Payload: update}); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to publish presence update", "event_id", eventID)
	}
}

// ensureSystemRelay bridges system-tickets-{eventId} to this hub's clients
func (h *Hub) ensureSystemRelay(ctx context.Context, eventID string) {
	h.relayMu.Lock()
	defer h.relayMu.Unlock()

	if _, exists := h.relays[eventID]; exists {
		return
	}

	ch, unsubscribe, err := h.manager.Subscribe(ctx, constants.BuildSystemChannel(eventID))
	if err != nil {
		logger.GetDefault().WithError(err).Warn("failed to open system relay", "event_id", eventID)
		return
	}
	h.relays[eventID] = unsubscribe

	go func() {
		for payload := range ch {
			h.BroadcastToEvent(eventID, Message{Type: MessageTypeSystemStatus, Data: rawJSON(payload)})
		}
	}()
}

func (h *Hub) dropSystemRelay(eventID string) {
	h.relayMu.Lock()
	defer h.relayMu.Unlock()

	if unsubscribe, exists := h.relays[eventID]; exists {
		unsubscribe()
		delete(h.relays, eventID)
	}
}

// BroadcastToEvent queues a message for every client of one event.
// Fire-and-forget; drops when the broadcast queue is full.
func (h *Hub) BroadcastToEvent(eventID string, message Message) {
	select {
	case h.broadcast <- eventMessage{eventID: eventID, message: message}:
	default:
		logger.GetDefault().Warn("broadcast channel full, dropping message", "event_id", eventID, "type", message.Type)
	}
}

func (h *Hub) broadcastToEvent(msg eventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for client := range h.clients {
		if client.eventID != msg.eventID {
			continue
		}
		select {
		case client.send <- msg.message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

// SetReserving flips a client's reserving flag and re-publishes counts
func (h *Hub) SetReserving(ctx context.Context, eventID, clientID string, reserving bool) {
	if err := h.tracker.SetReserving(ctx, eventID, clientID, reserving); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to update reserving flag", "client_id", clientID)
		return
	}
	h.publishPresence(ctx, eventID)
}

// Heartbeat refreshes a client's presence TTL
func (h *Hub) Heartbeat(ctx context.Context, eventID, clientID string) {
	if err := h.tracker.Heartbeat(ctx, eventID, clientID); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to refresh presence", "client_id", clientID)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	h.relayMu.Lock()
	for eventID, unsubscribe := range h.relays {
		unsubscribe()
		delete(h.relays, eventID)
	}
	h.relayMu.Unlock()

	logger.GetDefault().Info("websocket hub stopped", "clients_closed", closed)
}

// rawJSON lets pre-marshaled channel payloads pass through untouched
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}
