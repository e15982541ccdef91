package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medconnect/telemed/internal/models"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	// Chat payloads are small; anything bigger than this is malformed.
	maxMessageSize = 8 * 1024
)

// EventHandler receives decoded events from a client's read loop.
// HandleDisconnect runs once when the connection closes, before the client
// is removed from the hub.
type EventHandler interface {
	HandleEvent(client *Client, event *Event) error
	HandleDisconnect(client *Client)
}

// Client is one live connection. The verified identity is attached for the
// lifetime of the connection; events are not re-authenticated.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   models.Role
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[string]bool
	Hub    *Hub
	mu     sync.RWMutex
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role models.Role) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Rooms:  make(map[string]bool),
		Hub:    hub,
	}
}

// ReadPump reads events from the connection and dispatches them until the
// connection drops, then tears down room and session state.
func (c *Client) ReadPump(handler EventHandler) {
	defer func() {
		if handler != nil {
			handler.HandleDisconnect(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var evt Event
		err := c.Conn.ReadJSON(&evt)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		if evt.Type == TypePong {
			continue
		}

		if handler != nil {
			if err := handler.HandleEvent(c, &evt); err != nil {
				log.Printf("handle %s from %s: %v", evt.Type, c.UserID, err)
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump drains the send queue to the connection and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.Conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent queues an event for this connection only.
func (c *Client) SendEvent(eventType EventType, payload interface{}) error {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(message string) {
	c.SendEvent(TypeError, map[string]string{"error": message})
}

func (c *Client) IsInRoom(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[roomID]
}

func (c *Client) roomSnapshot() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make(map[string]bool, len(c.Rooms))
	for id := range c.Rooms {
		rooms[id] = true
	}
	return rooms
}
