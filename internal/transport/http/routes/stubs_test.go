package routes_test

import (
	"context"
	"sync"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

type stubAll struct{}

func (stubAll) RequestReset(context.Context, string) error                      { return nil }
func (stubAll) ResetPassword(context.Context, usecase.ResetPasswordInput) error { return nil }

func (stubAll) ChangeAccountType(context.Context, domain.Principal, domain.AccountType) (*usecase.AccountChangeResult, error) {
	return &usecase.AccountChangeResult{}, nil
}

func (stubAll) EnsureCompany(context.Context, domain.Principal, usecase.CompanyInput) (domain.Company, error) {
	return domain.Company{}, nil
}

func (stubAll) Create(context.Context, domain.Principal, usecase.PostInput) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubAll) Edit(context.Context, domain.Principal, string, usecase.PostPatch) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubAll) Delete(context.Context, domain.Principal, string) error { return nil }

func (stubAll) Get(context.Context, domain.Principal, string) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubAll) ListMine(context.Context, domain.Principal) ([]domain.Post, error) { return nil, nil }

func (stubAll) ListPending(context.Context, domain.Principal, int, int) ([]domain.Post, error) {
	return nil, nil
}

func (stubAll) Approve(context.Context, domain.Principal, string) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubAll) Reject(context.Context, domain.Principal, string) (domain.Post, error) {
	return domain.Post{}, nil
}

func (stubAll) List(context.Context, domain.Principal, bool, int) ([]domain.Notification, error) {
	return nil, nil
}

func (stubAll) UnreadCount(context.Context, domain.Principal) (int, error) { return 0, nil }

func (stubAll) MarkRead(context.Context, domain.Principal, string) error { return nil }

func (stubAll) MarkAllRead(context.Context, domain.Principal) (int64, error) { return 0, nil }

// countingStore keeps attempts in memory without expiring them.
type countingStore struct {
	mu     sync.Mutex
	count  map[string]int
	oldest map[string]time.Time
}

func newCountingStore() *countingStore {
	return &countingStore{count: make(map[string]int), oldest: make(map[string]time.Time)}
}

func (s *countingStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return nil
}

func (s *countingStore) CountAttempts(_ context.Context, key string, _ time.Duration, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count[key], nil
}

func (s *countingStore) RecordAttempt(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count[key] == 0 {
		s.oldest[key] = at
	}
	s.count[key]++
	return nil
}

func (s *countingStore) OldestAttempt(_ context.Context, key string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.oldest[key]
	return at, ok, nil
}
