package domain

import (
	"strings"
	"time"
)

// Role enumerates the privilege level attached to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AccountType distinguishes individual sellers/buyers from organizations.
type AccountType string

const (
	AccountTypePersonal     AccountType = "personal"
	AccountTypeOrganization AccountType = "organization"
)

// Valid reports whether the account type is one of the known values.
func (t AccountType) Valid() bool {
	return t == AccountTypePersonal || t == AccountTypeOrganization
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         *string
	PasswordHash  string
	EmailVerified bool
	Role          Role
	AccountType   AccountType
	Avatar        *string
	CreatedAt     time.Time
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Company is the ownership wrapper that lets a user author posts.
type Company struct {
	ID        string
	UserID    string
	Name      string
	Sector    string
	CreatedAt time.Time
}
