package domain

import "time"

// UserRegisteredEvent represents the payload for market.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	AccountType  AccountType
	RegisteredAt time.Time
}

// UserVerifiedEvent represents the payload for market.user.verified messages.
type UserVerifiedEvent struct {
	EventID    string
	UserID     string
	Email      string
	VerifiedAt time.Time
}

// PasswordResetEvent represents the payload for market.user.password_reset messages.
type PasswordResetEvent struct {
	EventID string
	UserID  string
	ResetAt time.Time
}

// AccountTypeChangedEvent represents the payload for market.account.type_changed messages.
type AccountTypeChangedEvent struct {
	EventID      string
	UserID       string
	From         AccountType
	To           AccountType
	DeletedPosts int
	ChangedAt    time.Time
}

// PostStatusChangedEvent represents the payload for market.post.status_changed messages.
type PostStatusChangedEvent struct {
	EventID   string
	PostID    string
	OwnerID   string
	From      *PostStatus
	To        PostStatus
	Action    string
	ActorID   string
	ChangedAt time.Time
}

// PostDeletedEvent represents the payload for market.post.deleted messages.
type PostDeletedEvent struct {
	EventID   string
	PostID    string
	OwnerID   string
	Reason    string
	DeletedAt time.Time
}
