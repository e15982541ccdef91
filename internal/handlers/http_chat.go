package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/database"
	"github.com/medconnect/telemed/internal/handlers/dto"
	"github.com/medconnect/telemed/internal/middleware"
	"github.com/medconnect/telemed/internal/models"
)

// ChatQueryHandler serves the read-only chat endpoints; all of them
// delegate to the conversation store.
type ChatQueryHandler struct {
	db *database.Database
}

func NewChatQueryHandler(db *database.Database) *ChatQueryHandler {
	return &ChatQueryHandler{db: db}
}

// GetContacts lists everyone the caller shares a conversation with, each
// carrying the caller's unread count from that counterpart.
func (h *ChatQueryHandler) GetContacts(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	contacts, err := h.db.ContactsFor(ctx, userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch contacts"})
		return
	}

	result := make([]dto.ContactResponse, len(contacts))
	for i, contact := range contacts {
		result[i] = dto.NewContactResponse(&contact.User, contact.UnreadCount)
	}

	c.JSON(http.StatusOK, result)
}

// GetHistory returns the caller's messages with one contact, oldest first,
// and marks the returned-direction messages read.
func (h *ChatQueryHandler) GetHistory(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	contactID, err := uuid.Parse(c.Query("contact_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact_id"})
		return
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	var beforeID *uint64
	if before := c.Query("before"); before != "" {
		if parsed, err := strconv.ParseUint(before, 10, 64); err == nil {
			beforeID = &parsed
		}
	}

	patientID, doctorID := userID, contactID
	if role == models.RoleDoctor {
		patientID, doctorID = contactID, userID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	messages, err := h.db.MessagesBetween(ctx, patientID, doctorID, limit, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chat history"})
		return
	}

	// Opening a thread reads it.
	if _, err := h.db.MarkReadBetween(ctx, patientID, doctorID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	result := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		result[i] = dto.NewMessageResponse(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result,
		"has_more": len(messages) == limit,
	})
}

// SearchContacts finds counterparts by name or speciality substring.
// Queries shorter than two characters are rejected.
func (h *ChatQueryHandler) SearchContacts(c *gin.Context) {
	role := c.MustGet(middleware.UserRoleKey).(models.Role)

	query := strings.TrimSpace(c.Query("query"))
	if utf8.RuneCountInString(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be at least 2 characters"})
		return
	}

	// Doctors search patients, patients search doctors.
	target := models.RoleDoctor
	if role == models.RoleDoctor {
		target = models.RolePatient
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	users, err := h.db.SearchUsers(ctx, target, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search contacts"})
		return
	}

	result := make([]dto.ContactResponse, len(users))
	for i := range users {
		result[i] = dto.NewContactResponse(&users[i], 0)
	}

	c.JSON(http.StatusOK, result)
}

// GetUnreadCount returns the caller's total unread message count.
func (h *ChatQueryHandler) GetUnreadCount(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	count, err := h.db.UnreadCount(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
