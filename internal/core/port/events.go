package port

import (
	"context"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
	PublishAccountTypeChanged(ctx context.Context, event domain.AccountTypeChangedEvent) error
	PublishPostStatusChanged(ctx context.Context, event domain.PostStatusChangedEvent) error
	PublishPostDeleted(ctx context.Context, event domain.PostDeletedEvent) error
}
