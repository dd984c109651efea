package models

import "time"

// Roles a user record may carry. Signup always produces RoleUser; RoleAdmin
// is assigned out of band.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an application account as persisted in the users collection.
// PasswordHash and ResetTokenHash never leave the server; Sanitize strips
// them before a record is serialized into a response.
type User struct {
	ID                string     `bson:"_id" json:"id"`
	Name              string     `bson:"name" json:"name"`
	Email             string     `bson:"email" json:"email"`
	PasswordHash      string     `bson:"password_hash" json:"-"`
	Role              string     `bson:"role" json:"role"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty" json:"-"`
	ResetTokenHash    string     `bson:"reset_token_hash,omitempty" json:"-"`
	ResetTokenExpires *time.Time `bson:"reset_token_expires_at,omitempty" json:"-"`
	CreatedAt         time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Sanitize returns a copy of the user without sensitive fields populated.
func (u User) Sanitize() User {
	u.PasswordHash = ""
	u.ResetTokenHash = ""
	u.ResetTokenExpires = nil
	return u
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issuance time. Tokens minted before a password change are no
// longer acceptable. JWT timestamps carry second precision, so the
// comparison happens on Unix seconds; a token minted in the same second as
// the change stays valid.
func (u User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// ResetTokenExpired reports whether the stored reset token is past its
// validity window. A user without a token counts as expired.
func (u User) ResetTokenExpired(now time.Time) bool {
	if u.ResetTokenHash == "" || u.ResetTokenExpires == nil {
		return true
	}
	return now.After(*u.ResetTokenExpires)
}
