package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/models"
)

// ChatMessagePayload is the inbound chat_message event body. AppointmentID
// scopes the message to a consultation; without it the message goes to the
// standing doctor-patient conversation.
type ChatMessagePayload struct {
	ReceiverID    uuid.UUID   `json:"receiver_id"`
	ReceiverRole  models.Role `json:"receiver_role"`
	Body          string      `json:"body"`
	AppointmentID *uuid.UUID  `json:"appointment_id,omitempty"`
}

// TypingPayload is best-effort; malformed payloads are dropped, not errored.
type TypingPayload struct {
	ReceiverID   uuid.UUID   `json:"receiver_id"`
	ReceiverRole models.Role `json:"receiver_role"`
	IsTyping     *bool       `json:"is_typing"`
}

type TypingNotice struct {
	SenderID   uuid.UUID   `json:"sender_id"`
	SenderRole models.Role `json:"sender_role"`
	IsTyping   bool        `json:"is_typing"`
}

type AppointmentEventPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

type ParticipantNotice struct {
	AppointmentID uuid.UUID   `json:"appointment_id"`
	UserID        uuid.UUID   `json:"user_id"`
	Role          models.Role `json:"role"`
}

type CallEndedNotice struct {
	AppointmentID uuid.UUID   `json:"appointment_id"`
	EndedBy       uuid.UUID   `json:"ended_by"`
	EndedByRole   models.Role `json:"ended_by_role"`
}

type MessageResponse struct {
	ID             uint64      `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	SenderRole     models.Role `json:"sender_role"`
	ReceiverID     uuid.UUID   `json:"receiver_id"`
	ReceiverRole   models.Role `json:"receiver_role"`
	Body           string      `json:"body"`
	IsRead         bool        `json:"is_read"`
	CreatedAt      time.Time   `json:"created_at"`
}

func NewMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		ReceiverID:     m.ReceiverID,
		ReceiverRole:   m.ReceiverRole,
		Body:           m.Body,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// Stable error codes surfaced to the sender on a failed send.
const (
	CodeMessageFailed  = "MESSAGE_FAILED"
	CodeInvalidMessage = "INVALID_MESSAGE"
)

type MessageError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type ContactResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Name        string    `json:"name"`
	Speciality  string    `json:"speciality,omitempty"`
	UnreadCount int64     `json:"unread_count"`
}

func NewContactResponse(u *models.User, unread int64) ContactResponse {
	return ContactResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Name:        u.FullName(),
		Speciality:  u.Speciality,
		UnreadCount: unread,
	}
}
