package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/models"
)

// EventType defines the wire-level event names.
type EventType string

const (
	// System
	TypePing  EventType = "ping"
	TypePong  EventType = "pong"
	TypeError EventType = "error"

	// Client -> server
	TypeJoinAppointment  EventType = "join_appointment"
	TypeLeaveAppointment EventType = "leave_appointment"
	TypeChatMessage      EventType = "chat_message"
	TypeTyping           EventType = "typing"
	TypeConnected        EventType = "connected"
	TypeEndCall          EventType = "end_call"

	// Server -> client
	TypeMessage           EventType = "message"
	TypeMessageSent       EventType = "message_sent"
	TypeMessageError      EventType = "message_error"
	TypeParticipantJoined EventType = "participant_joined"
	TypeParticipantLeft   EventType = "participant_left"
	TypeCallEnded         EventType = "call_ended"
)

type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals payload into a timestamped wire event.
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	evt := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Data = data
	}
	return evt, nil
}

// AppointmentRoom is the room every participant of one consultation joins.
func AppointmentRoom(appointmentID uuid.UUID) string {
	return "appointment:" + appointmentID.String()
}

// UserRoom is the standing per-identity inbox room; every connection for
// that identity joins it automatically on connect.
func UserRoom(role models.Role, userID uuid.UUID) string {
	return "user:" + string(role) + ":" + userID.String()
}
