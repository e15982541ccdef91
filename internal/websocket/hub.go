package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub is the room registry: it maps room ids ("appointment:<id>",
// "user:<role>:<id>") to the live connections subscribed to them. Rooms are
// purely in-memory and rebuilt from nothing on restart.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Room membership. A user with several tabs has several clients; all of
	// them sit in the user's identity room.
	rooms map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[string]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and the keepalive ticker until Stop.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[string]map[uuid.UUID]*Client)
}

// Register and Unregister hand the client to the Run loop. After Stop the
// loop is gone, so both bail out instead of blocking a closing connection's
// teardown forever.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	// Every connection joins its identity inbox room on connect.
	h.joinRoomUnsafe(client, UserRoom(client.Role, client.UserID))

	log.Printf("client registered: %s (%s %s)", client.ID, client.Role, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	// Unconditional: a closing connection leaves every room it had joined.
	for roomID := range client.roomSnapshot() {
		h.leaveRoomUnsafe(client, roomID)
	}

	delete(h.clients, client.ID)
	close(client.Send)

	log.Printf("client unregistered: %s (%s %s)", client.ID, client.Role, client.UserID)
}

// JoinRoom adds the client to a room. Joining an already-joined room is a
// no-op.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.joinRoomUnsafe(client, roomID)
}

func (h *Hub) joinRoomUnsafe(client *Client, roomID string) {
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}
	h.rooms[roomID][client.ID] = client

	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

// LeaveRoom removes the client from a room. Idempotent.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRoomUnsafe(client, roomID)
}

func (h *Hub) leaveRoomUnsafe(client *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomMembers returns the connection ids currently subscribed to a room.
func (h *Hub) RoomMembers(roomID string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]uuid.UUID, 0)
	for id := range h.rooms[roomID] {
		members = append(members, id)
	}
	return members
}

// RoomUsers returns the distinct user ids present in a room.
func (h *Hub) RoomUsers(roomID string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, client := range h.rooms[roomID] {
		seen[client.UserID] = true
	}

	users := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	return users
}

// SendToRoom delivers an event to every connection in the room.
func (h *Hub) SendToRoom(roomID string, event *Event) {
	h.SendToRoomExcept(roomID, event, uuid.Nil)
}

// SendToRoomExcept delivers an event to the room, skipping one connection
// (typically the sender).
func (h *Hub) SendToRoomExcept(roomID string, event *Event, excludeID uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event %s: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		if client.ID == excludeID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("client %s send queue full, dropping %s", client.ID, event.Type)
		}
	}
}

func (h *Hub) ping() {
	evt := &Event{Type: TypePing, Timestamp: time.Now()}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
		}
	}
}
