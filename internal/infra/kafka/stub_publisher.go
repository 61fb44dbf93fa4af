package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, key string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("key", key),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(eventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("account_type", string(event.AccountType)))
	return nil
}

func (p *StubPublisher) PublishUserVerified(_ context.Context, event domain.UserVerifiedEvent) error {
	p.logEvent(eventUserVerified, event.UserID, event.VerifiedAt)
	return nil
}

func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	p.logEvent(eventPasswordReset, event.UserID, event.ResetAt)
	return nil
}

func (p *StubPublisher) PublishAccountTypeChanged(_ context.Context, event domain.AccountTypeChangedEvent) error {
	p.logEvent(eventAccountTypeChanged, event.UserID, event.ChangedAt,
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.Int("deleted_posts", event.DeletedPosts))
	return nil
}

func (p *StubPublisher) PublishPostStatusChanged(_ context.Context, event domain.PostStatusChangedEvent) error {
	p.logEvent(eventPostStatusChanged, event.PostID, event.ChangedAt,
		zap.String("action", event.Action),
		zap.String("to", string(event.To)))
	return nil
}

func (p *StubPublisher) PublishPostDeleted(_ context.Context, event domain.PostDeletedEvent) error {
	p.logEvent(eventPostDeleted, event.PostID, event.DeletedAt, zap.String("reason", event.Reason))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
