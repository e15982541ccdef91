package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/database"
	"github.com/medconnect/telemed/internal/models"
)

func seedMessage(t *testing.T, d *database.Database, convID, senderID, receiverID uuid.UUID, body string) *models.Message {
	t.Helper()
	msg := &models.Message{
		ConversationID: convID,
		SenderID:       senderID,
		SenderRole:     models.RolePatient,
		ReceiverID:     receiverID,
		ReceiverRole:   models.RoleDoctor,
		Body:           body,
	}
	if err := d.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("append message %q: %v", body, err)
	}
	return msg
}

func TestFindOrCreateConversationConcurrent(t *testing.T) {
	d, db := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()

	const callers = 16
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got id %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}

	var count int64
	if err := db.Model(&models.Conversation{}).Count(&count).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 conversation row, got %d", count)
	}
}

func TestFindOrCreateConversationAppointmentScoped(t *testing.T) {
	d, db := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()
	apptID := uuid.New()

	standing, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("standing conversation: %v", err)
	}

	scoped, err := d.FindOrCreateConversation(ctx, patientID, doctorID, &apptID)
	if err != nil {
		t.Fatalf("appointment conversation: %v", err)
	}
	if scoped.ID == standing.ID {
		t.Fatalf("appointment-scoped conversation must be distinct from the standing one")
	}

	again, err := d.FindOrCreateConversation(ctx, patientID, doctorID, &apptID)
	if err != nil {
		t.Fatalf("repeat appointment conversation: %v", err)
	}
	if again.ID != scoped.ID {
		t.Fatalf("expected same appointment conversation, got %s and %s", again.ID, scoped.ID)
	}

	var count int64
	if err := db.Model(&models.Conversation{}).Count(&count).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 conversation rows, got %d", count)
	}
}

func TestStoreHonorsContextCancellation(t *testing.T) {
	d, _ := newTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.FindOrCreateConversation(ctx, uuid.New(), uuid.New(), nil); err == nil {
		t.Fatalf("cancelled context must fail the create")
	}

	msg := &models.Message{
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		SenderRole:     models.RolePatient,
		ReceiverID:     uuid.New(),
		ReceiverRole:   models.RoleDoctor,
		Body:           "hello",
	}
	if err := d.AppendMessage(ctx, msg); err == nil {
		t.Fatalf("cancelled context must fail the append")
	}

	if _, err := d.UnreadCount(ctx, uuid.New()); err == nil {
		t.Fatalf("cancelled context must fail the count")
	}
}

func TestAppendMessageBumpsLastMessageAt(t *testing.T) {
	d, _ := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()
	conv, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	before := conv.LastMessageAt
	time.Sleep(10 * time.Millisecond)

	msg := seedMessage(t, d, conv.ID, patientID, doctorID, "hello")
	if msg.ID == 0 {
		t.Fatalf("expected generated message id")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected message timestamp")
	}

	updated, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("refetch conversation: %v", err)
	}
	if !updated.LastMessageAt.After(before) {
		t.Fatalf("last_message_at not bumped: %v -> %v", before, updated.LastMessageAt)
	}
}

func TestUnreadAccounting(t *testing.T) {
	d, _ := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()
	conv, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	const k = 3
	for i := 0; i < k; i++ {
		seedMessage(t, d, conv.ID, patientID, doctorID, "msg")
	}

	count, err := d.UnreadCount(ctx, doctorID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != k {
		t.Fatalf("expected %d unread, got %d", k, count)
	}

	convCount, err := d.ConversationUnreadCount(ctx, conv.ID, doctorID)
	if err != nil {
		t.Fatalf("conversation unread count: %v", err)
	}
	if convCount != k {
		t.Fatalf("expected %d unread in conversation, got %d", k, convCount)
	}

	updated, err := d.MarkConversationRead(ctx, conv.ID, doctorID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if updated != k {
		t.Fatalf("expected %d rows marked read, got %d", k, updated)
	}

	count, err = d.UnreadCount(ctx, doctorID)
	if err != nil {
		t.Fatalf("unread count after read: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread after mark-read, got %d", count)
	}

	// Repeating is a no-op on already-read messages.
	updated, err = d.MarkConversationRead(ctx, conv.ID, doctorID)
	if err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected idempotent mark-read, got %d rows", updated)
	}

	// The sender's own unread count is unaffected.
	senderCount, err := d.UnreadCount(ctx, patientID)
	if err != nil {
		t.Fatalf("sender unread count: %v", err)
	}
	if senderCount != 0 {
		t.Fatalf("expected 0 unread for sender, got %d", senderCount)
	}
}

func TestConversationMessagesOrderAndPagination(t *testing.T) {
	d, _ := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()
	conv, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	bodies := []string{"one", "two", "three", "four", "five"}
	for _, b := range bodies {
		seedMessage(t, d, conv.ID, patientID, doctorID, b)
	}

	// Latest page, oldest-first.
	page, err := d.ConversationMessages(ctx, conv.ID, 3, nil)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}
	for i, want := range []string{"three", "four", "five"} {
		if page[i].Body != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, page[i].Body)
		}
	}
	for i := 1; i < len(page); i++ {
		if page[i].ID <= page[i-1].ID {
			t.Fatalf("ids not ascending: %d then %d", page[i-1].ID, page[i].ID)
		}
	}

	// Older page via the before cursor.
	older, err := d.ConversationMessages(ctx, conv.ID, 3, &page[0].ID)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 2 {
		t.Fatalf("expected 2 older messages, got %d", len(older))
	}
	if older[0].Body != "one" || older[1].Body != "two" {
		t.Fatalf("unexpected older page: %q, %q", older[0].Body, older[1].Body)
	}
}

func TestMessagesBetweenSpansConversations(t *testing.T) {
	d, _ := newTestDB(t)
	ctx := context.Background()

	patientID, doctorID := uuid.New(), uuid.New()
	apptID := uuid.New()

	standing, err := d.FindOrCreateConversation(ctx, patientID, doctorID, nil)
	if err != nil {
		t.Fatalf("standing conversation: %v", err)
	}
	scoped, err := d.FindOrCreateConversation(ctx, patientID, doctorID, &apptID)
	if err != nil {
		t.Fatalf("appointment conversation: %v", err)
	}

	seedMessage(t, d, standing.ID, patientID, doctorID, "direct")
	seedMessage(t, d, scoped.ID, patientID, doctorID, "during visit")

	messages, err := d.MessagesBetween(ctx, patientID, doctorID, 50, nil)
	if err != nil {
		t.Fatalf("messages between: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages across conversations, got %d", len(messages))
	}
	if messages[0].Body != "direct" || messages[1].Body != "during visit" {
		t.Fatalf("unexpected order: %q, %q", messages[0].Body, messages[1].Body)
	}

	// Reading the thread covers both conversations.
	marked, err := d.MarkReadBetween(ctx, patientID, doctorID, doctorID)
	if err != nil {
		t.Fatalf("mark read between: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 marked read, got %d", marked)
	}
}
