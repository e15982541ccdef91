package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medconnect/telemed/internal/models"
)

// FindOrCreateConversation returns the single conversation for the given
// patient/doctor pair (standing, appointmentID nil) or for the given
// appointment. Safe under concurrent callers: the insert is
// on-conflict-do-nothing against the unique indexes, and the canonical row
// is fetched afterwards, so every caller converges on the same id.
func (d *Database) FindOrCreateConversation(ctx context.Context, patientID, doctorID uuid.UUID, appointmentID *uuid.UUID) (*models.Conversation, error) {
	conv := models.Conversation{
		PatientID:     patientID,
		DoctorID:      doctorID,
		AppointmentID: appointmentID,
		LastMessageAt: time.Now(),
	}

	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		return nil, err
	}

	var existing models.Conversation
	query := d.db.WithContext(ctx).Where("patient_id = ? AND doctor_id = ?", patientID, doctorID)
	if appointmentID != nil {
		query = query.Where("appointment_id = ?", *appointmentID)
	} else {
		query = query.Where("appointment_id IS NULL")
	}
	if err := query.First(&existing).Error; err != nil {
		return nil, err
	}

	return &existing, nil
}

// AppendMessage persists the message and bumps the conversation's
// last_message_at in one transaction; a failed insert leaves the
// conversation untouched.
func (d *Database) AppendMessage(ctx context.Context, message *models.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("last_message_at", message.CreatedAt).Error
	})
}

// MarkConversationRead flips every unread message addressed to readerID in
// the conversation. Idempotent; returns the number of messages updated.
func (d *Database) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkReadBetween marks every unread message addressed to readerID across
// all conversations of the pair, standing and appointment-scoped alike.
func (d *Database) MarkReadBetween(ctx context.Context, patientID, doctorID, readerID uuid.UUID) (int64, error) {
	sub := d.db.Model(&models.Conversation{}).
		Select("id").
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID)

	res := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id IN (?) AND receiver_id = ? AND is_read = ?", sub, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount returns the total number of unread messages addressed to userID.
func (d *Database) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// ConversationUnreadCount returns unread messages addressed to userID within
// one conversation.
func (d *Database) ConversationUnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&count).Error
	return count, err
}

// ConversationMessages returns up to limit messages, oldest first. Stored
// newest-first internally: the query walks id DESC (optionally below
// beforeID) and the slice is reversed before returning.
func (d *Database) ConversationMessages(ctx context.Context, conversationID uuid.UUID, limit int, beforeID *uint64) ([]models.Message, error) {
	query := d.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeID != nil {
		query = query.Where("id < ?", *beforeID)
	}

	var messages []models.Message
	if err := query.Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MessagesBetween returns the pair's messages across all of its
// conversations, oldest first.
func (d *Database) MessagesBetween(ctx context.Context, patientID, doctorID uuid.UUID, limit int, beforeID *uint64) ([]models.Message, error) {
	sub := d.db.Model(&models.Conversation{}).
		Select("id").
		Where("patient_id = ? AND doctor_id = ?", patientID, doctorID)

	query := d.db.WithContext(ctx).Where("conversation_id IN (?)", sub)
	if beforeID != nil {
		query = query.Where("id < ?", *beforeID)
	}

	var messages []models.Message
	if err := query.Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
