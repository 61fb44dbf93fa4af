package domain

import "time"

// NotificationType enumerates in-product notification kinds.
type NotificationType string

const (
	NotificationPostUploaded       NotificationType = "post_uploaded"
	NotificationPostApproved       NotificationType = "post_approved"
	NotificationPostRejected       NotificationType = "post_rejected"
	NotificationPostResubmitted    NotificationType = "post_resubmitted"
	NotificationAccountTypeChanged NotificationType = "account_type_changed"
)

// Notification is an append-only inbox record. PostID is a weak reference.
type Notification struct {
	ID        string
	UserID    string
	PostID    *string
	Type      NotificationType
	Title     string
	Content   string
	IsRead    bool
	CreatedAt time.Time
}
