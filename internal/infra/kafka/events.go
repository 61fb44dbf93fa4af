package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventUserRegistered     = "user.registered"
	eventUserVerified       = "user.verified"
	eventPasswordReset      = "user.password_reset"
	eventAccountTypeChanged = "account.type_changed"
	eventPostStatusChanged  = "post.status_changed"
	eventPostDeleted        = "post.deleted"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Key       string            `json:"key,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// publish keys messages by the aggregate id so events of one user or post stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: p.producer.TopicName(eventType),
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes market.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Email        string    `json:"email"`
		AccountType  string    `json:"account_type"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		AccountType:  string(event.AccountType),
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserVerified publishes market.user.verified events.
func (p *EventPublisher) PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		Email      string    `json:"email"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		UserID:     event.UserID,
		Email:      event.Email,
		VerifiedAt: event.VerifiedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventUserVerified, event.UserID, event.VerifiedAt, payload)
}

// PublishPasswordReset publishes market.user.password_reset events.
func (p *EventPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		UserID  string    `json:"user_id"`
		ResetAt time.Time `json:"reset_at"`
	}{
		UserID:  event.UserID,
		ResetAt: event.ResetAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventPasswordReset, event.UserID, event.ResetAt, payload)
}

// PublishAccountTypeChanged publishes market.account.type_changed events.
func (p *EventPublisher) PublishAccountTypeChanged(ctx context.Context, event domain.AccountTypeChangedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		From         string    `json:"from"`
		To           string    `json:"to"`
		DeletedPosts int       `json:"deleted_posts"`
		ChangedAt    time.Time `json:"changed_at"`
	}{
		UserID:       event.UserID,
		From:         string(event.From),
		To:           string(event.To),
		DeletedPosts: event.DeletedPosts,
		ChangedAt:    event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventAccountTypeChanged, event.UserID, event.ChangedAt, payload)
}

// PublishPostStatusChanged publishes market.post.status_changed events.
func (p *EventPublisher) PublishPostStatusChanged(ctx context.Context, event domain.PostStatusChangedEvent) error {
	var from *string
	if event.From != nil {
		value := string(*event.From)
		from = &value
	}
	payload := struct {
		PostID    string    `json:"post_id"`
		OwnerID   string    `json:"owner_id"`
		From      *string   `json:"from,omitempty"`
		To        string    `json:"to"`
		Action    string    `json:"action"`
		ActorID   string    `json:"actor_id"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		PostID:    event.PostID,
		OwnerID:   event.OwnerID,
		From:      from,
		To:        string(event.To),
		Action:    event.Action,
		ActorID:   event.ActorID,
		ChangedAt: event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventPostStatusChanged, event.PostID, event.ChangedAt, payload)
}

// PublishPostDeleted publishes market.post.deleted events.
func (p *EventPublisher) PublishPostDeleted(ctx context.Context, event domain.PostDeletedEvent) error {
	payload := struct {
		PostID    string    `json:"post_id"`
		OwnerID   string    `json:"owner_id"`
		Reason    string    `json:"reason"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		PostID:    event.PostID,
		OwnerID:   event.OwnerID,
		Reason:    event.Reason,
		DeletedAt: event.DeletedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, eventPostDeleted, event.PostID, event.DeletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
