package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"tindahan/backend/internal/domain"
	"tindahan/backend/internal/store/memory"
)

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", memory.NewSeeded())

	resp, err := auth.Login(domain.LoginRequest{Username: "Admin ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signer := NewAuthManager("test-secret-key", time.Hour, "728391", memory.NewSeeded())
	verifier := NewAuthManager("another-secret-key", time.Hour, "728391", memory.NewSeeded())

	resp, err := signer.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", memory.NewSeeded())

	resp, err := auth.Login(domain.LoginRequest{Username: "cashier", Password: "cashier123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	parts := strings.Split(resp.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", memory.NewSeeded())

	token, err := auth.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", memory.NewSeeded())

	if !auth.ValidateManagerPIN("728391") {
		t.Fatalf("expected configured PIN to validate")
	}
	if auth.ValidateManagerPIN("123456") {
		t.Fatalf("expected wrong PIN to fail")
	}
	if auth.ValidateManagerPIN("") {
		t.Fatalf("expected empty PIN to fail")
	}
	if auth.ValidateManagerPIN(" 728391 ") != true {
		t.Fatalf("expected trimmed PIN to validate")
	}
}

func TestInactiveUserCannotLogin(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager("test-secret-key", time.Hour, "728391", repo)

	if err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username:  "dormant",
		Password:  "plaintext-for-upgrade",
		Role:      "cashier",
		Active:    false,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "dormant", Password: "plaintext-for-upgrade"}); err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}
