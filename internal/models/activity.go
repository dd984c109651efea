package models

import "time"

// Auth events recorded in the activity log.
const (
	ActivitySignup          = "signup"
	ActivityLogin           = "login"
	ActivityLoginFailed     = "login_failed"
	ActivityResetRequested  = "reset_requested"
	ActivityPasswordReset   = "password_reset"
	ActivityPasswordUpdated = "password_updated"
)

// Activity is a single auth event as stored in the auth_activity table.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"createdAt"`
}
