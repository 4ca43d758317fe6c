package models

import (
	"fmt"
	"time"
)

// Account captures application-facing fields for an identity.
type Account struct {
	ID        string    `json:"userID"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Address   string    `json:"address,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CartID    string    `json:"cartID"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credential is the password-login record of an account. Accounts created
// through an external identity provider have none.
type Credential struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"userID"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PasswordReset is a pending reset artifact. Only the hash of the token is kept.
type PasswordReset struct {
	TokenHash string
	AccountID string
	Email     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the reset can still be redeemed at now.
func (p PasswordReset) Usable(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}

// FormatAccountID renders a counter value as a public account id, e.g. U001.
func FormatAccountID(n int64) string {
	return fmt.Sprintf("U%03d", n)
}
