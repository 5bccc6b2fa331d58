package realtime

import (
	"context"
	"time"

	"lodgetix/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is a middleman between one websocket connection and the hub.
// clientID is the page-session UUID generated by the browser (or minted
// server-side when absent).
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	clientID           string
	eventID            string
	ticketDefinitionID string
}

func NewClient(hub *Hub, conn *websocket.Conn, clientID, eventID, ticketDefinitionID string) *Client {
	return &Client{
		hub:                hub,
		conn:               conn,
		send:               make(chan Message, 64),
		clientID:           clientID,
		eventID:            eventID,
		ticketDefinitionID: ticketDefinitionID,
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.GetDefault().WithError(err).Error("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.hub.Heartbeat(context.Background(), c.eventID, c.clientID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.GetDefault().WithError(err).Error("unexpected websocket close")
			}
			break
		}

		switch msg.Type {
		case MessageTypePing:
			c.hub.Heartbeat(context.Background(), c.eventID, c.clientID)
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		case MessageTypeStartReserving:
			c.hub.SetReserving(context.Background(), c.eventID, c.clientID, true)
		case MessageTypeStopReserving:
			c.hub.SetReserving(context.Background(), c.eventID, c.clientID, false)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.GetDefault().WithError(err).Error("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logger.GetDefault().WithError(err).Error("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
