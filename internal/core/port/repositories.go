package port

import (
	"context"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIDForUpdate locks the user row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdateAccountType(ctx context.Context, id string, accountType domain.AccountType) error
	// RecordPersonalPost increments the lifetime personal post count and returns the new total.
	RecordPersonalPost(ctx context.Context, id string) (int, error)
}

// TokenRepository is the append-only store of lifecycle tokens keyed by (user_id, purpose).
type TokenRepository interface {
	Create(ctx context.Context, token domain.Token) error
	// FindLatestActive returns the most recent unconsumed, unexpired token for the user whose hash matches.
	FindLatestActive(ctx context.Context, userID string, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error)
	// FindActiveBySecret resolves an unconsumed, unexpired token by its hash alone.
	FindActiveBySecret(ctx context.Context, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error)
	// Consume marks the token used; it fails with ErrNotFound when already consumed.
	Consume(ctx context.Context, id string, at time.Time) error
}

// CompanyRepository persists the company wrapper owning a user's posts.
type CompanyRepository interface {
	Create(ctx context.Context, company domain.Company) error
	Update(ctx context.Context, company domain.Company) error
	GetByUserID(ctx context.Context, userID string) (*domain.Company, error)
}

// PostRepository persists listings. Ownership is resolved through the owning company.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Post, error)
	Update(ctx context.Context, post domain.Post) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Post, error)
	ListByStatus(ctx context.Context, status domain.PostStatus, limit, offset int) ([]domain.Post, error)
	CountByOwnerAndStatus(ctx context.Context, ownerID string, status domain.PostStatus) (int, error)
	// DeleteByOwner removes every post owned by the user and returns the removed rows.
	DeleteByOwner(ctx context.Context, ownerID string) ([]domain.Post, error)
}

// EmbeddingRepository persists post description vectors.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, embedding domain.PostEmbedding) error
	Delete(ctx context.Context, postID string) error
	DeleteByPostIDs(ctx context.Context, postIDs []string) error
}

// NotificationRepository persists in-product notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Repositories groups every repository bound to the same executor.
type Repositories struct {
	Users         UserRepository
	Tokens        TokenRepository
	Companies     CompanyRepository
	Posts         PostRepository
	Embeddings    EmbeddingRepository
	Notifications NotificationRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// InTx runs fn against repositories bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}
