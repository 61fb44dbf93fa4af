package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

// NotificationRepository implements port.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewNotificationRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewNotificationRepository(exec pgExecutor) *NotificationRepository {
	return &NotificationRepository{exec: exec, builder: newBuilder()}
}

// Create inserts an unread notification.
func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	stmt, args, err := r.builder.Insert("notifications").
		Columns("id", "user_id", "post_id", "type", "title", "content", "is_read", "created_at").
		Values(n.ID, n.UserID, n.PostID, string(n.Type), n.Title, n.Content, n.IsRead, n.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert notification sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := r.builder.Select("id", "user_id", "post_id", "type", "title", "content", "is_read", "created_at").
		From("notifications").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if unreadOnly {
		query = query.Where(squirrel.Eq{"is_read": false})
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list notifications sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n     domain.Notification
			nType string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.PostID, &nType, &n.Title, &n.Content, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = domain.NotificationType(nType)
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

// CountUnread counts the user's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("notifications").
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count notifications sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips is_read for one notification owned by the user.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, userID string) error {
	stmt, args, err := r.builder.Update("notifications").
		Set("is_read", true).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark notification read sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkAllRead flips is_read for every unread notification of the user.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	stmt, args, err := r.builder.Update("notifications").
		Set("is_read", true).
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build mark all notifications read sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
