package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService reads and acknowledges the caller's inbox.
type NotificationService struct {
	store port.Store
}

func NewNotificationService(store port.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, principal domain.Principal, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	items, err := s.store.Repositories().Notifications.ListByUser(ctx, principal.UserID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, principal domain.Principal) (int, error) {
	count, err := s.store.Repositories().Notifications.CountUnread(ctx, principal.UserID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips one notification owned by the caller. Foreign ids report ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, principal domain.Principal, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return ErrNotFound
	}
	if err := s.store.Repositories().Notifications.MarkRead(ctx, notificationID, principal.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flips every unread notification of the caller and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, principal domain.Principal) (int64, error) {
	n, err := s.store.Repositories().Notifications.MarkAllRead(ctx, principal.UserID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}
