package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
)

var fixedNow = time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: fixedNow} }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("unsupported hash")
	}
	return encoded == "hashed:"+password, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	issued   map[string]domain.Principal
	seq      int
	issueErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{issued: map[string]domain.Principal{}}
}

func (f *fakeSessions) Issue(p domain.Principal) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return domain.Session{}, f.issueErr
	}
	f.seq++
	token := fmt.Sprintf("session-%s-%d", p.UserID, f.seq)
	f.issued[token] = p
	return domain.Session{Token: token, ExpiresAt: fixedNow.Add(7 * 24 * time.Hour)}, nil
}

func (f *fakeSessions) Parse(token string) (domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.issued[token]
	if !ok {
		return domain.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeEvents struct {
	registered    []domain.UserRegisteredEvent
	verified      []domain.UserVerifiedEvent
	resets        []domain.PasswordResetEvent
	accountTypes  []domain.AccountTypeChangedEvent
	statusChanges []domain.PostStatusChangedEvent
	deleted       []domain.PostDeletedEvent
	err           error
}

func (f *fakeEvents) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	f.registered = append(f.registered, e)
	return f.err
}

func (f *fakeEvents) PublishUserVerified(_ context.Context, e domain.UserVerifiedEvent) error {
	f.verified = append(f.verified, e)
	return f.err
}

func (f *fakeEvents) PublishPasswordReset(_ context.Context, e domain.PasswordResetEvent) error {
	f.resets = append(f.resets, e)
	return f.err
}

func (f *fakeEvents) PublishAccountTypeChanged(_ context.Context, e domain.AccountTypeChangedEvent) error {
	f.accountTypes = append(f.accountTypes, e)
	return f.err
}

func (f *fakeEvents) PublishPostStatusChanged(_ context.Context, e domain.PostStatusChangedEvent) error {
	f.statusChanges = append(f.statusChanges, e)
	return f.err
}

func (f *fakeEvents) PublishPostDeleted(_ context.Context, e domain.PostDeletedEvent) error {
	f.deleted = append(f.deleted, e)
	return f.err
}

type fakeStorage struct {
	removed []string
	err     error
}

func (f *fakeStorage) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return f.err
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type transitionRecord struct {
	machine, transition, outcome string
}

type fakeRecorder struct {
	records []transitionRecord
}

func (f *fakeRecorder) RecordTransition(machine, transition, outcome string) {
	f.records = append(f.records, transitionRecord{machine, transition, outcome})
}

// countingRateLimitStore keeps attempts in memory per key.
type countingRateLimitStore struct {
	attempts map[string][]time.Time
}

func newCountingRateLimitStore() *countingRateLimitStore {
	return &countingRateLimitStore{attempts: map[string][]time.Time{}}
}

func (s *countingRateLimitStore) TrimWindow(_ context.Context, key string, window time.Duration, ref time.Time) error {
	var kept []time.Time
	for _, at := range s.attempts[key] {
		if at.After(ref.Add(-window)) {
			kept = append(kept, at)
		}
	}
	s.attempts[key] = kept
	return nil
}

func (s *countingRateLimitStore) CountAttempts(_ context.Context, key string, _ time.Duration, _ time.Time) (int, error) {
	return len(s.attempts[key]), nil
}

func (s *countingRateLimitStore) RecordAttempt(_ context.Context, key string, at time.Time) error {
	s.attempts[key] = append(s.attempts[key], at)
	return nil
}

func (s *countingRateLimitStore) OldestAttempt(_ context.Context, key string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	if len(s.attempts[key]) == 0 {
		return time.Time{}, false, nil
	}
	return s.attempts[key][0], true, nil
}

// fakeDigester tags the value so stored digests stay readable in assertions.
type fakeDigester struct{}

func (fakeDigester) Digest(value string) string { return "digest:" + value }

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{BaseURL: "https://market.test"},
		Auth: config.AuthSettings{
			OTPTTL:            5 * time.Minute,
			OTPLength:         4,
			ResetTTL:          time.Hour,
			PasswordMinLength: 8,
		},
		RateLimit: config.RateLimitSettings{WindowDuration: 15 * time.Minute},
	}
}

func strPtr(v string) *string { return &v }

func adminPrincipal(u domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Email: u.Email, AccountType: u.AccountType, Role: domain.RoleAdmin}
}

func userPrincipal(u domain.User) domain.Principal {
	return domain.Principal{UserID: u.ID, Email: u.Email, AccountType: u.AccountType, Role: u.Role}
}
