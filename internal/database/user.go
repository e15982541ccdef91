package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/models"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return d.db.WithContext(ctx).Create(user).Error
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now()).Error
}

// Contact is a chat counterpart with the caller's unread count from them.
type Contact struct {
	User        models.User
	UnreadCount int64
}

// ContactsFor lists everyone the user shares a conversation with: a doctor
// sees their patients, a patient their doctors, each with the number of
// unread messages that counterpart has sent.
func (d *Database) ContactsFor(ctx context.Context, userID uuid.UUID, role models.Role) ([]Contact, error) {
	ownColumn, otherColumn := "patient_id", "doctor_id"
	if role == models.RoleDoctor {
		ownColumn, otherColumn = "doctor_id", "patient_id"
	}

	var counterpartIDs []uuid.UUID
	err := d.db.WithContext(ctx).Model(&models.Conversation{}).
		Distinct(otherColumn).
		Where(ownColumn+" = ?", userID).
		Pluck(otherColumn, &counterpartIDs).Error
	if err != nil {
		return nil, err
	}
	if len(counterpartIDs) == 0 {
		return []Contact{}, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", counterpartIDs).Order("last_name, first_name").Find(&users).Error; err != nil {
		return nil, err
	}

	type senderCount struct {
		SenderID uuid.UUID
		Count    int64
	}
	var counts []senderCount
	err = d.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) as count").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	unread := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		unread[c.SenderID] = c.Count
	}

	contacts := make([]Contact, len(users))
	for i, u := range users {
		contacts[i] = Contact{User: u, UnreadCount: unread[u.ID]}
	}
	return contacts, nil
}

// SearchUsers finds users of the given role whose name or speciality
// contains the query substring.
func (d *Database) SearchUsers(ctx context.Context, role models.Role, query string) ([]models.User, error) {
	like := "%" + query + "%"
	var users []models.User
	err := d.db.WithContext(ctx).Where("role = ?", role).
		Where("first_name LIKE ? OR last_name LIKE ? OR speciality LIKE ?", like, like, like).
		Order("last_name, first_name").
		Find(&users).Error
	return users, err
}
