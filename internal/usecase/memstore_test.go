package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

type memData struct {
	users         map[string]domain.User
	tokens        []domain.Token
	companies     map[string]domain.Company
	posts         map[string]domain.Post
	embeddings    map[string]domain.PostEmbedding
	notifications []domain.Notification
	personalPosts map[string]int
}

func (d memData) clone() memData {
	c := memData{
		users:         make(map[string]domain.User, len(d.users)),
		tokens:        append([]domain.Token(nil), d.tokens...),
		companies:     make(map[string]domain.Company, len(d.companies)),
		posts:         make(map[string]domain.Post, len(d.posts)),
		embeddings:    make(map[string]domain.PostEmbedding, len(d.embeddings)),
		notifications: append([]domain.Notification(nil), d.notifications...),
		personalPosts: make(map[string]int, len(d.personalPosts)),
	}
	for k, v := range d.personalPosts {
		c.personalPosts[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.companies {
		c.companies[k] = v
	}
	for k, v := range d.posts {
		c.posts[k] = v
	}
	for k, v := range d.embeddings {
		c.embeddings[k] = v
	}
	return c
}

// memStore is an in-memory port.Store. Transactions are serialised and roll
// back by restoring a snapshot. failures injects errors by "repo.Method" name.
type memStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	data     memData
	seq      int
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		data: memData{
			users:         map[string]domain.User{},
			companies:     map[string]domain.Company{},
			posts:         map[string]domain.Post{},
			embeddings:    map[string]domain.PostEmbedding{},
			personalPosts: map[string]int{},
		},
		failures: map[string]error{},
	}
}

func (s *memStore) failOn(op string, err error) { s.failures[op] = err }

func (s *memStore) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		return err
	}
	return nil
}

func (s *memStore) Repositories() port.Repositories {
	return port.Repositories{
		Users:         memUsers{s},
		Tokens:        memTokens{s},
		Companies:     memCompanies{s},
		Posts:         memPosts{s},
		Embeddings:    memEmbeddings{s},
		Notifications: memNotifications{s},
	}
}

func (s *memStore) InTx(_ context.Context, fn func(repos port.Repositories) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()
	return fn(s.Repositories())
}

func (s *memStore) restore(snapshot memData) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

// seedUser stores a verified user directly.
func (s *memStore) seedUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.AccountType == "" {
		u.AccountType = domain.AccountTypePersonal
	}
	u.Email = domain.NormalizeEmail(u.Email)
	s.data.users[u.ID] = u
	return u
}

func (s *memStore) seedPost(ownerID string, status domain.PostStatus, title string, image *string) domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	var company domain.Company
	for _, c := range s.data.companies {
		if c.UserID == ownerID {
			company = c
		}
	}
	if company.ID == "" {
		s.seq++
		company = domain.Company{ID: fmt.Sprintf("company-%d", s.seq), UserID: ownerID, Name: "Co"}
		s.data.companies[company.ID] = company
	}
	s.seq++
	p := domain.Post{
		ID:          fmt.Sprintf("post-%d", s.seq),
		CompanyID:   company.ID,
		OwnerID:     ownerID,
		Type:        domain.PostTypeSell,
		Title:       title,
		Description: title + " description",
		Status:      status,
		PostImage:   image,
		CreatedAt:   time.Date(2023, 7, 1, 0, 0, s.seq, 0, time.UTC),
	}
	s.data.posts[p.ID] = p
	s.data.embeddings[p.ID] = domain.PostEmbedding{PostID: p.ID, Vector: []float32{1}}
	return p
}

func (s *memStore) user(id string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.users[id]
}

func (s *memStore) post(id string) (domain.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.posts[id]
	return p, ok
}

func (s *memStore) embedding(postID string) (domain.PostEmbedding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.embeddings[postID]
	return e, ok
}

func (s *memStore) tokensFor(userID string, purpose domain.TokenPurpose) []domain.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Token
	for _, t := range s.data.tokens {
		if t.UserID == userID && t.Purpose == purpose {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) notificationsFor(userID string) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.data.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.users)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return err
	}
	for _, u := range r.s.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	r.s.data.users[user.ID] = user
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Phone != nil && *u.Phone == phone {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) RecordPersonalPost(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return 0, repository.ErrNotFound
	}
	r.s.data.personalPosts[id]++
	return r.s.data.personalPosts[id], nil
}

func (r memUsers) update(id string, fn func(u *domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.s.data.users[id] = u
	return nil
}

func (r memUsers) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) { u.EmailVerified = true })
}

func (r memUsers) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r memUsers) UpdateAccountType(_ context.Context, id string, accountType domain.AccountType) error {
	if err := r.s.fail("users.UpdateAccountType"); err != nil {
		return err
	}
	return r.update(id, func(u *domain.User) { u.AccountType = accountType })
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, token domain.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.tokens = append(r.s.data.tokens, token)
	return nil
}

func (r memTokens) find(match func(domain.Token) bool, now time.Time) (*domain.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *domain.Token
	for i := range r.s.data.tokens {
		t := r.s.data.tokens[i]
		if !match(t) || !t.IsActive(now) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			tok := t
			best = &tok
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (r memTokens) FindLatestActive(_ context.Context, userID string, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error) {
	return r.find(func(t domain.Token) bool {
		return t.UserID == userID && t.Purpose == purpose && t.SecretHash == secretHash
	}, now)
}

func (r memTokens) FindActiveBySecret(_ context.Context, purpose domain.TokenPurpose, secretHash string, now time.Time) (*domain.Token, error) {
	return r.find(func(t domain.Token) bool {
		return t.Purpose == purpose && t.SecretHash == secretHash
	}, now)
}

func (r memTokens) Consume(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.tokens {
		if r.s.data.tokens[i].ID == id && r.s.data.tokens[i].ConsumedAt == nil {
			consumed := at
			r.s.data.tokens[i].ConsumedAt = &consumed
			return nil
		}
	}
	return repository.ErrNotFound
}

type memCompanies struct{ s *memStore }

func (r memCompanies) Create(_ context.Context, company domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.companies {
		if c.UserID == company.UserID {
			return repository.ErrConflict
		}
	}
	r.s.data.companies[company.ID] = company
	return nil
}

func (r memCompanies) Update(_ context.Context, company domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.companies[company.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.companies[company.ID] = company
	return nil
}

func (r memCompanies) GetByUserID(_ context.Context, userID string) (*domain.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.data.companies {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memPosts struct{ s *memStore }

func (r memPosts) Create(_ context.Context, post domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	company, ok := r.s.data.companies[post.CompanyID]
	if !ok {
		return fmt.Errorf("company %s missing", post.CompanyID)
	}
	post.OwnerID = company.UserID
	r.s.data.posts[post.ID] = post
	return nil
}

func (r memPosts) GetByID(_ context.Context, id string) (*domain.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPosts) GetByIDForUpdate(ctx context.Context, id string) (*domain.Post, error) {
	return r.GetByID(ctx, id)
}

func (r memPosts) Update(_ context.Context, post domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.posts[post.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.data.posts[post.ID] = post
	return nil
}

func (r memPosts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.posts, id)
	return nil
}

func (r memPosts) filter(match func(domain.Post) bool) []domain.Post {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Post
	for _, p := range r.s.data.posts {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memPosts) ListByOwner(_ context.Context, ownerID string) ([]domain.Post, error) {
	out := r.filter(func(p domain.Post) bool { return p.OwnerID == ownerID })
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r memPosts) ListByStatus(_ context.Context, status domain.PostStatus, limit, offset int) ([]domain.Post, error) {
	out := r.filter(func(p domain.Post) bool { return p.Status == status })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memPosts) CountByOwnerAndStatus(_ context.Context, ownerID string, status domain.PostStatus) (int, error) {
	return len(r.filter(func(p domain.Post) bool { return p.OwnerID == ownerID && p.Status == status })), nil
}

func (r memPosts) DeleteByOwner(_ context.Context, ownerID string) ([]domain.Post, error) {
	if err := r.s.fail("posts.DeleteByOwner"); err != nil {
		return nil, err
	}
	removed := r.filter(func(p domain.Post) bool { return p.OwnerID == ownerID })
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range removed {
		delete(r.s.data.posts, p.ID)
	}
	return removed, nil
}

type memEmbeddings struct{ s *memStore }

func (r memEmbeddings) Upsert(_ context.Context, embedding domain.PostEmbedding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.embeddings[embedding.PostID] = embedding
	return nil
}

func (r memEmbeddings) Delete(_ context.Context, postID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.embeddings, postID)
	return nil
}

func (r memEmbeddings) DeleteByPostIDs(_ context.Context, postIDs []string) error {
	if err := r.s.fail("embeddings.DeleteByPostIDs"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range postIDs {
		delete(r.s.data.embeddings, id)
	}
	return nil
}

type memNotifications struct{ s *memStore }

func (r memNotifications) Create(_ context.Context, n domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("notifications.Create"); err != nil {
		return err
	}
	r.s.data.notifications = append(r.s.data.notifications, n)
	return nil
}

func (r memNotifications) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Notification
	for i := len(r.s.data.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := r.s.data.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r memNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkRead(_ context.Context, id string, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.notifications {
		if r.s.data.notifications[i].ID == id && r.s.data.notifications[i].UserID == userID {
			r.s.data.notifications[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.data.notifications {
		if r.s.data.notifications[i].UserID == userID && !r.s.data.notifications[i].IsRead {
			r.s.data.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

var _ port.Store = (*memStore)(nil)
