package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fenwick-labs/gatehouse/internal/auth"
)

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := auth.NewService("   ", time.Hour); !errors.Is(err, auth.ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
}

func TestSignAndVerifyToken(t *testing.T) {
	svc, err := auth.NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error creating auth service: %v", err)
	}

	token, expiresAt, err := svc.SignToken("user-1")
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a signed token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
	if claims.IssuedAt == nil {
		t.Fatalf("expected issued-at claim to be set")
	}

	if _, err := svc.VerifyToken(token + "x"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := auth.NewService("secret-a", time.Hour)
	other, _ := auth.NewService("secret-b", time.Hour)

	token, _, err := svc.SignToken("user-1")
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	if _, err := other.VerifyToken(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc, err := auth.NewService("test-secret", -time.Hour)
	if err != nil {
		t.Fatalf("unexpected error creating auth service: %v", err)
	}

	token, _, err := svc.SignToken("user-1")
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}

	if _, err := svc.VerifyToken(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if err := auth.CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("expected matching password to pass, got %v", err)
	}

	if err := auth.CheckPassword(hash, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestNewResetToken(t *testing.T) {
	raw, hash, err := auth.NewResetToken()
	if err != nil {
		t.Fatalf("new reset token failed: %v", err)
	}

	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(raw))
	}
	if hash != auth.HashResetToken(raw) {
		t.Fatalf("stored hash must be the digest of the raw token")
	}
	if raw == hash {
		t.Fatalf("raw token must differ from its hash")
	}

	raw2, _, err := auth.NewResetToken()
	if err != nil {
		t.Fatalf("second reset token failed: %v", err)
	}
	if raw == raw2 {
		t.Fatalf("reset tokens must be unique")
	}
}
