package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/pkg/auth"
)

func TestGenerateAndVerify(t *testing.T) {
	m := auth.NewJWTManager("test-secret", time.Hour)
	userID := uuid.New().String()

	token, err := m.Generate(userID, "doctor")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != userID {
		t.Fatalf("expected subject %s, got %s", userID, claims.Subject)
	}
	if claims.Role != "doctor" {
		t.Fatalf("expected role doctor, got %s", claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := auth.NewJWTManager("secret-a", time.Hour).Generate(uuid.New().String(), "patient")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := auth.NewJWTManager("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatalf("token signed with another secret must not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := auth.NewJWTManager("test-secret", -time.Minute)
	token, err := m.Generate(uuid.New().String(), "patient")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatalf("expired token must not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := auth.NewJWTManager("test-secret", time.Hour)
	if _, err := m.Verify("not-a-token"); err == nil {
		t.Fatalf("garbage must not verify")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	token, err := auth.ExtractTokenFromHeader(r)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("expected abc123, got %s", token)
	}

	r.Header.Set("Authorization", "abc123")
	if _, err := auth.ExtractTokenFromHeader(r); err == nil {
		t.Fatalf("missing scheme must fail")
	}
}
