package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

func TestNotificationInbox(t *testing.T) {
	store := newMemStore()
	posts := NewPostService(store, nil, nil, nil, nil, nil)
	posts.WithClock(newClock().Now)
	svc := NewNotificationService(store)
	ctx := context.Background()

	owner := store.seedUser(domain.User{ID: "owner", Name: "Ann", Email: "ann@x.com", AccountType: domain.AccountTypeOrganization})
	other := store.seedUser(domain.User{ID: "other", Email: "bob@x.com"})
	for i := 0; i < 3; i++ {
		if _, err := posts.Create(ctx, userPrincipal(owner), samplePost()); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	count, err := svc.UnreadCount(ctx, userPrincipal(owner))
	if err != nil || count != 3 {
		t.Fatalf("expected 3 unread, got %d (err %v)", count, err)
	}

	items, err := svc.List(ctx, userPrincipal(owner), true, 0)
	if err != nil || len(items) != 3 {
		t.Fatalf("expected 3 notifications, got %d (err %v)", len(items), err)
	}

	if err := svc.MarkRead(ctx, userPrincipal(other), items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign notification, got %v", err)
	}
	if err := svc.MarkRead(ctx, userPrincipal(owner), items[0].ID); err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}

	n, err := svc.MarkAllRead(ctx, userPrincipal(owner))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 marked read, got %d (err %v)", n, err)
	}
	if count, _ := svc.UnreadCount(ctx, userPrincipal(owner)); count != 0 {
		t.Fatalf("expected no unread notifications, got %d", count)
	}
	if items, _ := svc.List(ctx, userPrincipal(owner), false, 0); len(items) != 3 {
		t.Fatalf("expected full history to remain, got %d", len(items))
	}
}

func TestNotificationRollsBackWithTransition(t *testing.T) {
	store := newMemStore()
	posts := NewPostService(store, nil, nil, nil, nil, nil)
	admin := store.seedUser(domain.User{ID: "admin", Email: "mod@x.com", Role: domain.RoleAdmin})
	owner := store.seedUser(domain.User{ID: "owner", Email: "ann@x.com"})
	post := store.seedPost(owner.ID, domain.PostStatusPending, "Steel", nil)
	store.failOn("notifications.Create", errors.New("disk full"))

	if _, err := posts.Approve(context.Background(), adminPrincipal(admin), post.ID); err == nil {
		t.Fatalf("expected approve to fail when the notification cannot be stored")
	}
	stored, _ := store.post(post.ID)
	if stored.Status != domain.PostStatusPending {
		t.Fatalf("status change must roll back, got %s", stored.Status)
	}
}
