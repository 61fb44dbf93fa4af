package domain

import "time"

// Principal is the caller identity resolved from a session token.
type Principal struct {
	UserID      string
	Email       string
	AccountType AccountType
	Role        Role
}

// IsAdmin reports whether the principal claims the administrator role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Session is an issued bearer credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
}
