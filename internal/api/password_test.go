package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/fenwick-labs/gatehouse/internal/auth"
	"github.com/fenwick-labs/gatehouse/internal/models"
)

// requestReset drives the forgot-password endpoint and returns the raw token
// that was emailed.
func requestReset(t *testing.T, env *testEnv, email string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot password: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	resets := env.mailer.sentResets(t)
	if len(resets) == 0 {
		t.Fatalf("expected a reset email to be sent")
	}

	parsed, err := url.Parse(resets[len(resets)-1])
	if err != nil {
		t.Fatalf("reset URL did not parse: %v", err)
	}
	raw := parsed.Query().Get("token")
	if raw == "" {
		t.Fatalf("reset URL carries no token: %s", resets[len(resets)-1])
	}
	return raw
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if resets := env.mailer.sentResets(t); len(resets) != 0 {
		t.Fatalf("no email must be sent for unknown address")
	}
}

func TestForgotPasswordStoresOnlyTokenHash(t *testing.T) {
	env := setupTestEnv(t)
	userID, _ := env.signup(t, "Alice", "alice@example.com", "correct-horse")

	raw := requestReset(t, env, "alice@example.com")

	stored, err := env.store.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("find user failed: %v", err)
	}
	if stored.ResetTokenHash == raw {
		t.Fatalf("raw token must never be stored")
	}
	if stored.ResetTokenHash != auth.HashResetToken(raw) {
		t.Fatalf("stored value must be the token digest")
	}
	if stored.ResetTokenExpires == nil || !stored.ResetTokenExpires.After(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", stored.ResetTokenExpires)
	}
}

func TestForgotPasswordEmailFailureRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	userID, _ := env.signup(t, "Alice", "alice@example.com", "correct-horse")
	env.mailer.failReset = true

	rec := env.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "alice@example.com",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on send failure, got %d", rec.Code)
	}

	stored, err := env.store.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("find user failed: %v", err)
	}
	if stored.ResetTokenHash != "" || stored.ResetTokenExpires != nil {
		t.Fatalf("reset fields must be cleared when the email fails")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	env := setupTestEnv(t)
	env.signup(t, "Alice", "alice@example.com", "correct-horse")
	raw := requestReset(t, env, "alice@example.com")

	rec := env.do(t, http.MethodPatch, "/api/auth/reset-password/"+raw, map[string]string{
		"password":        "battery-staple",
		"passwordConfirm": "battery-staple",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatalf("expected a fresh session token after reset")
	}

	// Old password is gone, new one works.
	if rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password must be rejected, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "battery-staple",
	}); rec.Code != http.StatusOK {
		t.Fatalf("new password must be accepted, got %d", rec.Code)
	}

	// The token is single-use.
	if rec := env.do(t, http.MethodPatch, "/api/auth/reset-password/"+raw, map[string]string{
		"password":        "yet-another-pass",
		"passwordConfirm": "yet-another-pass",
	}); rec.Code != http.StatusBadRequest {
		t.Fatalf("reused token must be rejected, got %d", rec.Code)
	}
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	env := setupTestEnv(t)
	env.signup(t, "Alice", "alice@example.com", "correct-horse")

	rec := env.do(t, http.MethodPatch, "/api/auth/reset-password/deadbeef", map[string]string{
		"password":        "battery-staple",
		"passwordConfirm": "battery-staple",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	env := setupTestEnv(t)
	userID, _ := env.signup(t, "Alice", "alice@example.com", "correct-horse")
	raw := requestReset(t, env, "alice@example.com")

	expired := time.Now().UTC().Add(-time.Minute)
	env.store.mutate(t, userID, func(u *models.User) {
		u.ResetTokenExpires = &expired
	})

	rec := env.do(t, http.MethodPatch, "/api/auth/reset-password/"+raw, map[string]string{
		"password":        "battery-staple",
		"passwordConfirm": "battery-staple",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired token, got %d", rec.Code)
	}

	// Password unchanged.
	if rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	}); rec.Code != http.StatusOK {
		t.Fatalf("expired reset must leave the password intact, got %d", rec.Code)
	}
}

func TestUpdatePassword(t *testing.T) {
	env := setupTestEnv(t)
	_, token := env.signup(t, "Alice", "alice@example.com", "correct-horse")

	// Unauthenticated: protect kicks in.
	if rec := env.do(t, http.MethodPatch, "/api/auth/update-password", map[string]string{
		"passwordCurrent": "correct-horse",
		"password":        "battery-staple",
		"passwordConfirm": "battery-staple",
	}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	authed := func(body map[string]string) int {
		req := newJSONRequest(t, http.MethodPatch, "/api/auth/update-password", body)
		req.Header.Set("Authorization", "Bearer "+token)
		return env.doReq(t, req).Code
	}

	// Wrong current password.
	if code := authed(map[string]string{
		"passwordCurrent": "battery-staple",
		"password":        "a-new-password",
		"passwordConfirm": "a-new-password",
	}); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d", code)
	}

	// Stored password untouched.
	if rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "correct-horse",
	}); rec.Code != http.StatusOK {
		t.Fatalf("failed update must leave the password intact, got %d", rec.Code)
	}

	// Correct current password.
	if code := authed(map[string]string{
		"passwordCurrent": "correct-horse",
		"password":        "a-new-password",
		"passwordConfirm": "a-new-password",
	}); code != http.StatusOK {
		t.Fatalf("expected 200 for password update, got %d", code)
	}

	if rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "a-new-password",
	}); rec.Code != http.StatusOK {
		t.Fatalf("updated password must be accepted, got %d", rec.Code)
	}
}
