package domain

import "time"

// TokenPurpose scopes a lifecycle token to the flow that issued it.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// Token is an append-only, single-use secret gating an irreversible transition.
// Only the SHA-256 hash of the secret is persisted.
type Token struct {
	ID         string
	UserID     string
	Purpose    TokenPurpose
	SecretHash string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// IsActive reports whether the token may still be consumed at the given instant.
func (t Token) IsActive(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
