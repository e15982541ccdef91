package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/consultation"
	"github.com/medconnect/telemed/internal/database"
	"github.com/medconnect/telemed/internal/handlers/dto"
	"github.com/medconnect/telemed/internal/models"
	"github.com/medconnect/telemed/internal/websocket"
)

// storageTimeout bounds every persistence call made while serving a
// request or event. A stalled database surfaces as an error to the caller
// instead of wedging the connection.
const storageTimeout = 5 * time.Second

// ChatHandler is the single entry point for realtime events: message relay,
// typing fan-out and the consultation lifecycle.
type ChatHandler struct {
	db          *database.Database
	hub         *websocket.Hub
	coordinator *consultation.Coordinator

	storageTimeout time.Duration
}

func NewChatHandler(db *database.Database, hub *websocket.Hub, coordinator *consultation.Coordinator) *ChatHandler {
	return &ChatHandler{db: db, hub: hub, coordinator: coordinator, storageTimeout: storageTimeout}
}

// SetStorageTimeout overrides the per-call persistence budget.
func (h *ChatHandler) SetStorageTimeout(d time.Duration) {
	h.storageTimeout = d
}

func (h *ChatHandler) HandleEvent(client *websocket.Client, evt *websocket.Event) error {
	switch evt.Type {
	case websocket.TypeChatMessage:
		return h.handleChatMessage(client, evt)

	case websocket.TypeTyping:
		h.handleTyping(client, evt)
		return nil

	case websocket.TypeJoinAppointment:
		return h.handleJoinAppointment(client, evt)

	case websocket.TypeLeaveAppointment:
		return h.handleLeaveAppointment(client, evt)

	case websocket.TypeConnected:
		return h.handleConnected(client, evt)

	case websocket.TypeEndCall:
		return h.handleEndCall(client, evt)

	default:
		log.Printf("unknown event type: %s", evt.Type)
		return nil
	}
}

// handleChatMessage relays one message: validate, resolve the conversation,
// persist, broadcast to the receiver, ack the sender. Persistence happens
// before broadcast, so receivers never see a message that wasn't stored.
func (h *ChatHandler) handleChatMessage(client *websocket.Client, evt *websocket.Event) error {
	var payload dto.ChatMessagePayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		h.sendMessageError(client, "malformed message payload", dto.CodeInvalidMessage)
		return nil
	}

	if payload.Body == "" || utf8.RuneCountInString(payload.Body) > models.MaxMessageBody {
		h.sendMessageError(client, "message body must be 1-1000 characters", dto.CodeInvalidMessage)
		return nil
	}
	if payload.ReceiverID == uuid.Nil || !payload.ReceiverRole.Valid() || payload.ReceiverRole == client.Role {
		h.sendMessageError(client, "invalid receiver", dto.CodeInvalidMessage)
		return nil
	}

	patientID, doctorID := client.UserID, payload.ReceiverID
	if client.Role == models.RoleDoctor {
		patientID, doctorID = payload.ReceiverID, client.UserID
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.storageTimeout)
	defer cancel()

	conv, err := h.db.FindOrCreateConversation(ctx, patientID, doctorID, payload.AppointmentID)
	if err != nil {
		log.Printf("resolve conversation for %s: %v", client.UserID, err)
		h.sendMessageError(client, "failed to send message", dto.CodeMessageFailed)
		return nil
	}

	message := &models.Message{
		ConversationID: conv.ID,
		SenderID:       client.UserID,
		SenderRole:     client.Role,
		ReceiverID:     payload.ReceiverID,
		ReceiverRole:   payload.ReceiverRole,
		Body:           payload.Body,
	}

	if err := h.db.AppendMessage(ctx, message); err != nil {
		log.Printf("persist message from %s: %v", client.UserID, err)
		h.sendMessageError(client, "failed to send message", dto.CodeMessageFailed)
		return nil
	}

	response := dto.NewMessageResponse(message)
	out, err := websocket.NewEvent(websocket.TypeMessage, response)
	if err != nil {
		return err
	}

	if payload.AppointmentID != nil {
		h.hub.SendToRoomExcept(websocket.AppointmentRoom(*payload.AppointmentID), out, client.ID)
	} else {
		h.hub.SendToRoom(websocket.UserRoom(payload.ReceiverRole, payload.ReceiverID), out)
	}

	// Ack with the persisted id and timestamp so the sender can reconcile
	// its optimistic UI.
	return client.SendEvent(websocket.TypeMessageSent, response)
}

func (h *ChatHandler) sendMessageError(client *websocket.Client, message, code string) {
	if err := client.SendEvent(websocket.TypeMessageError, dto.MessageError{Error: message, Code: code}); err != nil {
		log.Printf("send message_error to %s: %v", client.ID, err)
	}
}

// handleTyping fans out an ephemeral typing notice to the receiver's
// identity room. Never persisted, never acked; malformed payloads are
// silently dropped.
func (h *ChatHandler) handleTyping(client *websocket.Client, evt *websocket.Event) {
	var payload dto.TypingPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return
	}
	if payload.ReceiverID == uuid.Nil || !payload.ReceiverRole.Valid() || payload.IsTyping == nil {
		return
	}

	notice := dto.TypingNotice{
		SenderID:   client.UserID,
		SenderRole: client.Role,
		IsTyping:   *payload.IsTyping,
	}

	out, err := websocket.NewEvent(websocket.TypeTyping, notice)
	if err != nil {
		return
	}
	h.hub.SendToRoom(websocket.UserRoom(payload.ReceiverRole, payload.ReceiverID), out)
}

func (h *ChatHandler) handleJoinAppointment(client *websocket.Client, evt *websocket.Event) error {
	var payload dto.AppointmentEventPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}
	if payload.AppointmentID == uuid.Nil {
		return websocket.ErrInvalidMessage
	}

	room := websocket.AppointmentRoom(payload.AppointmentID)
	h.hub.JoinRoom(client, room)

	tr := h.coordinator.Join(payload.AppointmentID, client.UserID, client.Role, client.ID)
	if tr.NotifyJoined {
		// Second participant arrived: the cue for the clients to start call
		// signaling.
		notice := dto.ParticipantNotice{
			AppointmentID: payload.AppointmentID,
			UserID:        client.UserID,
			Role:          client.Role,
		}
		out, err := websocket.NewEvent(websocket.TypeParticipantJoined, notice)
		if err != nil {
			return err
		}
		h.hub.SendToRoomExcept(room, out, client.ID)
	}

	return nil
}

func (h *ChatHandler) handleLeaveAppointment(client *websocket.Client, evt *websocket.Event) error {
	var payload dto.AppointmentEventPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	room := websocket.AppointmentRoom(payload.AppointmentID)
	h.hub.LeaveRoom(client, room)

	tr := h.coordinator.Leave(payload.AppointmentID, client.UserID)
	h.notifyLeft(tr, client.ID)

	return nil
}

func (h *ChatHandler) handleConnected(client *websocket.Client, evt *websocket.Event) error {
	var payload dto.AppointmentEventPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	h.coordinator.MarkConnected(payload.AppointmentID)
	return nil
}

// handleEndCall broadcasts call_ended and, for a doctor-initiated end,
// marks the appointment completed. A patient hanging up leaves the
// appointment status untouched.
func (h *ChatHandler) handleEndCall(client *websocket.Client, evt *websocket.Event) error {
	var payload dto.AppointmentEventPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	tr := h.coordinator.End(payload.AppointmentID, client.UserID, client.Role)

	notice := dto.CallEndedNotice{
		AppointmentID: payload.AppointmentID,
		EndedBy:       client.UserID,
		EndedByRole:   client.Role,
	}
	out, err := websocket.NewEvent(websocket.TypeCallEnded, notice)
	if err != nil {
		return err
	}
	h.hub.SendToRoomExcept(websocket.AppointmentRoom(payload.AppointmentID), out, client.ID)

	if tr.CompleteAppointment {
		ctx, cancel := context.WithTimeout(context.Background(), h.storageTimeout)
		defer cancel()
		if err := h.db.CompleteAppointment(ctx, payload.AppointmentID); err != nil {
			log.Printf("complete appointment %s: %v", payload.AppointmentID, err)
		}
	}

	return nil
}

// HandleDisconnect runs when a connection closes, before the hub drops its
// room memberships: any consultation the connection was in loses that
// participant, and the remaining party is told.
func (h *ChatHandler) HandleDisconnect(client *websocket.Client) {
	for _, tr := range h.coordinator.Disconnect(client.ID) {
		h.notifyLeft(tr, client.ID)
	}
}

func (h *ChatHandler) notifyLeft(tr consultation.Transition, exclude uuid.UUID) {
	if !tr.NotifyLeft {
		return
	}

	notice := dto.ParticipantNotice{
		AppointmentID: tr.AppointmentID,
		UserID:        tr.Participant.UserID,
		Role:          tr.Participant.Role,
	}
	out, err := websocket.NewEvent(websocket.TypeParticipantLeft, notice)
	if err != nil {
		return
	}
	h.hub.SendToRoomExcept(websocket.AppointmentRoom(tr.AppointmentID), out, exclude)
}
