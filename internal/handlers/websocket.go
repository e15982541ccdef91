package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medconnect/telemed/internal/middleware"
	"github.com/medconnect/telemed/internal/models"
	ws "github.com/medconnect/telemed/internal/websocket"
)

// WebSocketHandler upgrades authenticated requests into hub connections.
type WebSocketHandler struct {
	hub         *ws.Hub
	chatHandler *ChatHandler
	upgrader    websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, chatHandler *ChatHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatHandler: chatHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origin to the portal host in production
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection. Identity was verified by the ws
// auth middleware; it stays attached to the client for the connection's
// lifetime.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	role, exists := c.Get(middleware.UserRoleKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, userID.(uuid.UUID), role.(models.Role))

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.chatHandler)
}
