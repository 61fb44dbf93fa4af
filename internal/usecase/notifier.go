package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

// notifier records inbox entries through the repositories of the caller's
// transaction, so a notification commits or rolls back with its transition.
type notifier struct {
	now func() time.Time
}

func (n notifier) notify(ctx context.Context, repos port.Repositories, userID string, postID *string, typ domain.NotificationType, title, content string) error {
	notification := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		PostID:    postID,
		Type:      typ,
		Title:     title,
		Content:   content,
		CreatedAt: n.now().UTC(),
	}
	if err := repos.Notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("record %s notification: %w", typ, err)
	}
	return nil
}

func (n notifier) postNotice(ctx context.Context, repos port.Repositories, post domain.Post, typ domain.NotificationType) error {
	title, content := postMessage(typ, post.Title)
	postID := post.ID
	return n.notify(ctx, repos, post.OwnerID, &postID, typ, title, content)
}

func postMessage(typ domain.NotificationType, postTitle string) (string, string) {
	switch typ {
	case domain.NotificationPostUploaded:
		return "Post submitted", fmt.Sprintf("Your post %q was submitted and is awaiting review.", postTitle)
	case domain.NotificationPostApproved:
		return "Post approved", fmt.Sprintf("Your post %q has been approved and is now visible.", postTitle)
	case domain.NotificationPostRejected:
		return "Post rejected", fmt.Sprintf("Your post %q was rejected. You can edit it and submit it again.", postTitle)
	case domain.NotificationPostResubmitted:
		return "Post resubmitted", fmt.Sprintf("Your post %q was changed and is awaiting review again.", postTitle)
	default:
		return string(typ), postTitle
	}
}

func accountTypeMessage(from, to domain.AccountType, deletedPosts int) (string, string) {
	content := fmt.Sprintf("Your account type changed from %s to %s.", from, to)
	if deletedPosts > 0 {
		content += fmt.Sprintf(" %d post(s) were removed.", deletedPosts)
	}
	return "Account type changed", content
}
