package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a message thread between one doctor and one patient,
// optionally scoped to a single appointment. The partial unique index keeps
// one standing conversation per pair; appointment-scoped conversations are
// unique per appointment.
type Conversation struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PatientID     uuid.UUID  `gorm:"not null;index:idx_conversations_pair,unique,where:appointment_id IS NULL"`
	DoctorID      uuid.UUID  `gorm:"not null;index:idx_conversations_pair,unique,where:appointment_id IS NULL"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_conversations_appointment"`
	LastMessageAt time.Time
	CreatedAt     time.Time
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// MaxMessageBody bounds chat message length.
const MaxMessageBody = 1000

// Message is immutable once created except for the unread -> read transition.
// The auto-increment ID gives per-pair delivery ordering.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	SenderRole     Role      `gorm:"type:varchar(10);not null"`
	ReceiverID     uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_unread,where:is_read = false"`
	ReceiverRole   Role      `gorm:"type:varchar(10);not null"`
	Body           string    `gorm:"type:varchar(1000);not null"`
	IsRead         bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time
}
