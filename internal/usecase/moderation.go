package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

const (
	defaultModerationPageSize = 50
	maxModerationPageSize     = 200

	actionSubmit            = "submit"
	postDeletedByOwner      = "owner_deleted"
	postDeletedByModeration = "moderator_deleted"
)

// PostInput carries the author-editable fields of a post.
type PostInput struct {
	Type        domain.PostType `json:"type" validate:"required,oneof=buy sell"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=10000"`
	Category    string          `json:"category" validate:"max=120"`
	Budget      *float64        `json:"budget" validate:"omitempty,gte=0"`
	Location    string          `json:"location" validate:"max=200"`
	Tags        []string        `json:"tags" validate:"max=20,dive,max=50"`
	PostImage   *string         `json:"post_image" validate:"omitempty,max=512"`
}

func (in PostInput) content() domain.PostContent {
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	var image *string
	if in.PostImage != nil && strings.TrimSpace(*in.PostImage) != "" {
		v := strings.TrimSpace(*in.PostImage)
		image = &v
	}
	return domain.PostContent{
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Budget:      in.Budget,
		Location:    strings.TrimSpace(in.Location),
		Tags:        tags,
		PostImage:   image,
	}
}

// PostPatch carries a partial edit. Absent fields keep their stored value; an
// empty post_image removes the image and an empty tags list clears the tags.
type PostPatch struct {
	Type        *domain.PostType `json:"type"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Budget      *float64         `json:"budget"`
	Location    *string          `json:"location"`
	Tags        []string         `json:"tags"`
	PostImage   *string          `json:"post_image"`
}

// merge overlays the present fields on current.
func (p PostPatch) merge(current domain.PostContent) PostInput {
	in := PostInput{
		Type:        current.Type,
		Title:       current.Title,
		Description: current.Description,
		Category:    current.Category,
		Budget:      current.Budget,
		Location:    current.Location,
		Tags:        current.Tags,
		PostImage:   current.PostImage,
	}
	if p.Type != nil {
		in.Type = *p.Type
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Budget != nil {
		in.Budget = p.Budget
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	if p.Tags != nil {
		in.Tags = p.Tags
	}
	if p.PostImage != nil {
		in.PostImage = p.PostImage
	}
	return in
}

// PostService runs the post moderation state machine.
type PostService struct {
	store    port.Store
	embedder port.Embedder
	storage  port.ObjectStorage
	events   port.EventPublisher
	metrics  port.TransitionRecorder
	notifier notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewPostService constructs a PostService.
func NewPostService(
	store port.Store,
	embedder port.Embedder,
	storage port.ObjectStorage,
	events port.EventPublisher,
	metrics port.TransitionRecorder,
	logger *zap.Logger,
) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PostService{
		store:    store,
		embedder: embedder,
		storage:  storage,
		events:   events,
		metrics:  recorderOrNop(metrics),
		logger:   logger,
		now:      time.Now,
	}
	s.notifier = notifier{now: s.clock}
	return s
}

// WithClock overrides the time source.
func (s *PostService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *PostService) clock() time.Time { return s.now() }

// Create submits a new post into the moderation queue. A personal account may
// create one post over its lifetime, so deleting that post does not free the
// slot. The owner row is locked so concurrent creates serialise.
func (s *PostService) Create(ctx context.Context, principal domain.Principal, input PostInput) (post domain.Post, err error) {
	ctx, span := startSpan(ctx, "PostService.Create")
	defer func() {
		s.metrics.RecordTransition(machineModeration, actionSubmit, outcomeOf(err))
		endSpan(span, err)
	}()

	content := input.content()
	input.Title, input.Description = content.Title, content.Description
	if err := validateInput(input); err != nil {
		return domain.Post{}, err
	}

	now := s.now().UTC()
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		owner, err := repos.Users.GetByIDForUpdate(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnauthenticated
			}
			return fmt.Errorf("lock owner: %w", err)
		}

		if owner.AccountType == domain.AccountTypePersonal {
			total, err := repos.Users.RecordPersonalPost(ctx, owner.ID)
			if err != nil {
				return fmt.Errorf("record personal post: %w", err)
			}
			if total > 1 {
				return ErrPostLimitReached
			}
		}

		company, err := s.companyFor(ctx, repos, *owner, now)
		if err != nil {
			return err
		}

		post = domain.Post{
			ID:        uuid.NewString(),
			CompanyID: company.ID,
			OwnerID:   owner.ID,
			Status:    domain.PostStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		post.Apply(content)
		if err := repos.Posts.Create(ctx, post); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		return s.notifier.postNotice(ctx, repos, post, domain.NotificationPostUploaded)
	})
	if err != nil {
		return domain.Post{}, err
	}

	s.refreshEmbedding(ctx, post)
	s.publishStatusChange(ctx, post, nil, actionSubmit, principal.UserID, now)
	return post, nil
}

// companyFor returns the owner's company, creating a default one named after the owner.
func (s *PostService) companyFor(ctx context.Context, repos port.Repositories, owner domain.User, now time.Time) (domain.Company, error) {
	company, err := repos.Companies.GetByUserID(ctx, owner.ID)
	if err == nil {
		return *company, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Company{}, fmt.Errorf("lookup company: %w", err)
	}
	created := domain.Company{
		ID:        uuid.NewString(),
		UserID:    owner.ID,
		Name:      owner.Name,
		CreatedAt: now,
	}
	if err := repos.Companies.Create(ctx, created); err != nil {
		return domain.Company{}, fmt.Errorf("create company: %w", err)
	}
	return created, nil
}

// Edit merges the owner's partial changes into the post. A content change on a
// post that is not pending sends it back to pending for another review. The
// stored image is only removed when the patch replaces or clears it.
func (s *PostService) Edit(ctx context.Context, principal domain.Principal, postID string, patch PostPatch) (post domain.Post, err error) {
	ctx, span := startSpan(ctx, "PostService.Edit")
	var from *domain.PostStatus
	defer func() {
		if from != nil {
			s.metrics.RecordTransition(machineModeration, string(domain.ActionResubmit), outcomeOf(err))
		}
		endSpan(span, err)
	}()

	now := s.now().UTC()
	var (
		changed       bool
		descChanged   bool
		replacedImage *string
	)
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		current, err := s.lockPost(ctx, repos, postID)
		if err != nil {
			return err
		}
		if current.OwnerID != principal.UserID {
			return ErrUnauthorized
		}
		post = *current
		previous := current.Content()

		input := patch.merge(previous)
		content := input.content()
		input.Title, input.Description = content.Title, content.Description
		if err := validateInput(input); err != nil {
			return err
		}
		if previous.Equal(content) {
			return nil
		}

		changed = true
		descChanged = previous.Description != content.Description
		if previous.PostImage != nil && (content.PostImage == nil || *content.PostImage != *previous.PostImage) {
			replacedImage = previous.PostImage
		}
		post.Apply(content)
		post.UpdatedAt = now

		resubmit := post.Status != domain.PostStatusPending
		if resubmit {
			prior := post.Status
			next, err := prior.Transition(domain.ActionResubmit)
			if err != nil {
				return err
			}
			post.Status = next
			from = &prior
		}
		if err := repos.Posts.Update(ctx, post); err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		if resubmit {
			return s.notifier.postNotice(ctx, repos, post, domain.NotificationPostResubmitted)
		}
		return nil
	})
	if err != nil {
		return domain.Post{}, err
	}
	if !changed {
		return post, nil
	}

	if replacedImage != nil {
		removePostImage(ctx, s.storage, s.logger, domain.Post{ID: post.ID, PostImage: replacedImage})
	}
	if descChanged {
		s.refreshEmbedding(ctx, post)
	}
	if from != nil {
		s.publishStatusChange(ctx, post, from, string(domain.ActionResubmit), principal.UserID, now)
	}
	return post, nil
}

// Approve moves a pending or rejected post to approved. Administrators only.
func (s *PostService) Approve(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error) {
	return s.moderate(ctx, principal, postID, domain.ActionApprove, domain.NotificationPostApproved)
}

// Reject moves a pending or approved post to rejected. Administrators only.
func (s *PostService) Reject(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error) {
	return s.moderate(ctx, principal, postID, domain.ActionReject, domain.NotificationPostRejected)
}

func (s *PostService) moderate(ctx context.Context, principal domain.Principal, postID string, action domain.ModerationAction, notice domain.NotificationType) (post domain.Post, err error) {
	ctx, span := startSpan(ctx, "PostService.Moderate")
	span.SetAttributes(attribute.String("moderation.action", string(action)), attribute.String("post.id", postID))
	defer func() {
		s.metrics.RecordTransition(machineModeration, string(action), outcomeOf(err))
		endSpan(span, err)
	}()

	now := s.now().UTC()
	var from domain.PostStatus
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		if err := requireAdmin(ctx, repos, principal); err != nil {
			return err
		}
		current, err := s.lockPost(ctx, repos, postID)
		if err != nil {
			return err
		}
		next, err := current.Status.Transition(action)
		if err != nil {
			return fmt.Errorf("%s post in status %s: %w", action, current.Status, err)
		}
		from = current.Status
		post = *current
		post.Status = next
		post.UpdatedAt = now
		if err := repos.Posts.Update(ctx, post); err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		return s.notifier.postNotice(ctx, repos, post, notice)
	})
	if err != nil {
		return domain.Post{}, err
	}

	s.publishStatusChange(ctx, post, &from, string(action), principal.UserID, now)
	s.logger.Info("post moderated",
		zap.String("post_id", post.ID),
		zap.String("action", string(action)),
		zap.String("moderator_id", principal.UserID),
	)
	return post, nil
}

// Delete removes a post and its embedding. Owners and administrators may delete.
func (s *PostService) Delete(ctx context.Context, principal domain.Principal, postID string) (err error) {
	ctx, span := startSpan(ctx, "PostService.Delete")
	defer func() { endSpan(span, err) }()

	var removed domain.Post
	reason := postDeletedByOwner
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		current, err := s.lockPost(ctx, repos, postID)
		if err != nil {
			return err
		}
		if current.OwnerID != principal.UserID {
			if err := requireAdmin(ctx, repos, principal); err != nil {
				return err
			}
			reason = postDeletedByModeration
		}
		if err := repos.Embeddings.Delete(ctx, current.ID); err != nil {
			return fmt.Errorf("delete embedding: %w", err)
		}
		if err := repos.Posts.Delete(ctx, current.ID); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		removed = *current
		return nil
	})
	if err != nil {
		return err
	}

	removePostImage(ctx, s.storage, s.logger, removed)
	now := s.now().UTC()
	publishEvent(ctx, s.events, s.logger, "post deleted", func(ctx context.Context) error {
		return s.events.PublishPostDeleted(ctx, domain.PostDeletedEvent{
			EventID:   uuid.NewString(),
			PostID:    removed.ID,
			OwnerID:   removed.OwnerID,
			Reason:    reason,
			DeletedAt: now,
		})
	})
	return nil
}

// Get returns a post visible to the caller: its owner, an administrator, or anyone once approved.
func (s *PostService) Get(ctx context.Context, principal domain.Principal, postID string) (domain.Post, error) {
	post, err := s.store.Repositories().Posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Post{}, ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("lookup post: %w", err)
	}
	if post.Status == domain.PostStatusApproved || post.OwnerID == principal.UserID || principal.IsAdmin() {
		return *post, nil
	}
	return domain.Post{}, ErrNotFound
}

// ListMine returns the caller's posts, newest first.
func (s *PostService) ListMine(ctx context.Context, principal domain.Principal) ([]domain.Post, error) {
	posts, err := s.store.Repositories().Posts.ListByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListPending returns the moderation queue, oldest first. Administrators only.
func (s *PostService) ListPending(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Post, error) {
	repos := s.store.Repositories()
	if err := requireAdmin(ctx, repos, principal); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultModerationPageSize
	}
	if limit > maxModerationPageSize {
		limit = maxModerationPageSize
	}
	if offset < 0 {
		offset = 0
	}
	posts, err := repos.Posts.ListByStatus(ctx, domain.PostStatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending posts: %w", err)
	}
	return posts, nil
}

func (s *PostService) lockPost(ctx context.Context, repos port.Repositories, postID string) (*domain.Post, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, ErrNotFound
	}
	post, err := repos.Posts.GetByIDForUpdate(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock post: %w", err)
	}
	return post, nil
}

// refreshEmbedding stores the description vector. Failures are logged; the post is already saved.
func (s *PostService) refreshEmbedding(ctx context.Context, post domain.Post) {
	if s.embedder == nil {
		return
	}
	vector, err := s.embedder.Embed(ctx, post.Description)
	if err != nil {
		s.logger.Warn("post embedding failed", zap.String("post_id", post.ID), zap.Error(err))
		return
	}
	embedding := domain.PostEmbedding{PostID: post.ID, Vector: vector, UpdatedAt: s.now().UTC()}
	if err := s.store.Repositories().Embeddings.Upsert(ctx, embedding); err != nil {
		s.logger.Warn("post embedding store failed", zap.String("post_id", post.ID), zap.Error(err))
	}
}

func (s *PostService) publishStatusChange(ctx context.Context, post domain.Post, from *domain.PostStatus, action, actorID string, at time.Time) {
	publishEvent(ctx, s.events, s.logger, "post status changed", func(ctx context.Context) error {
		return s.events.PublishPostStatusChanged(ctx, domain.PostStatusChangedEvent{
			EventID:   uuid.NewString(),
			PostID:    post.ID,
			OwnerID:   post.OwnerID,
			From:      from,
			To:        post.Status,
			Action:    action,
			ActorID:   actorID,
			ChangedAt: at,
		})
	})
}

// requireAdmin re-reads the caller's role so a demotion applies before the session expires.
func requireAdmin(ctx context.Context, repos port.Repositories, principal domain.Principal) error {
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	user, err := repos.Users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("lookup moderator: %w", err)
	}
	if !user.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}
