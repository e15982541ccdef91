package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/handlers"
	"github.com/medconnect/telemed/internal/handlers/dto"
	"github.com/medconnect/telemed/internal/middleware"
	"github.com/medconnect/telemed/internal/models"
)

func performGet(t *testing.T, handler gin.HandlerFunc, userID uuid.UUID, role models.Role, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.UserRoleKey, role)

	handler(c)
	return w
}

func seedUser(t *testing.T, env *testEnv, first, last string, role models.Role, speciality string) *models.User {
	t.Helper()
	u := &models.User{
		FirstName:    first,
		LastName:     last,
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Speciality:   speciality,
	}
	if err := env.db.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("save user %s %s: %v", first, last, err)
	}
	return u
}

func TestSearchContactsMinimumQueryLength(t *testing.T) {
	env := newTestEnv(t)
	h := handlers.NewChatQueryHandler(env.db)

	doctor := seedUser(t, env, "Grace", "Hopper", models.RoleDoctor, "Cardiology")
	patientID := uuid.New()

	// One rune is below the minimum, even when it is two bytes.
	w := performGet(t, h.SearchContacts, patientID, models.RolePatient, "/api/chat/contacts/search?query=%C3%A9")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("single-rune query: expected 400, got %d", w.Code)
	}

	w = performGet(t, h.SearchContacts, patientID, models.RolePatient, "/api/chat/contacts/search?query=Ho")
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d (%s)", w.Code, w.Body)
	}

	var results []dto.ContactResponse
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != doctor.ID || results[0].Name != "Grace Hopper" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestGetContactsCarriesNameAndUnread(t *testing.T) {
	env := newTestEnv(t)
	h := handlers.NewChatQueryHandler(env.db)
	ctx := context.Background()

	doctor := seedUser(t, env, "John", "Watson", models.RoleDoctor, "General")
	patient := seedUser(t, env, "Mary", "Morstan", models.RolePatient, "")

	conv, err := env.db.FindOrCreateConversation(ctx, patient.ID, doctor.ID, nil)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	for i := 0; i < 2; i++ {
		msg := &models.Message{
			ConversationID: conv.ID,
			SenderID:       patient.ID,
			SenderRole:     models.RolePatient,
			ReceiverID:     doctor.ID,
			ReceiverRole:   models.RoleDoctor,
			Body:           "hello",
		}
		if err := env.db.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	w := performGet(t, h.GetContacts, doctor.ID, models.RoleDoctor, "/api/chat/contacts")
	if w.Code != http.StatusOK {
		t.Fatalf("contacts: expected 200, got %d (%s)", w.Code, w.Body)
	}

	var contacts []dto.ContactResponse
	if err := json.Unmarshal(w.Body.Bytes(), &contacts); err != nil {
		t.Fatalf("decode contacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	got := contacts[0]
	if got.ID != patient.ID {
		t.Fatalf("expected contact %s, got %s", patient.ID, got.ID)
	}
	if got.Name != "Mary Morstan" {
		t.Fatalf("expected full name, got %q", got.Name)
	}
	if got.UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", got.UnreadCount)
	}
}
