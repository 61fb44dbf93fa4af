package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

const postDeletedByAccountChange = "account_type_changed"

// AccountChangeResult describes the account after a type change.
type AccountChangeResult struct {
	User         domain.User
	Session      domain.Session
	Changed      bool
	DeletedPosts int
}

// CompanyInput carries the company profile owning the caller's posts.
type CompanyInput struct {
	Name   string `json:"name" validate:"required,max=200"`
	Sector string `json:"sector" validate:"max=120"`
}

// AccountService executes account-type transitions and company upserts.
type AccountService struct {
	store    port.Store
	sessions port.SessionTokens
	storage  port.ObjectStorage
	events   port.EventPublisher
	metrics  port.TransitionRecorder
	notifier notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(
	store port.Store,
	sessions port.SessionTokens,
	storage port.ObjectStorage,
	events port.EventPublisher,
	metrics port.TransitionRecorder,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AccountService{
		store:    store,
		sessions: sessions,
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
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AccountService) clock() time.Time { return s.now() }

// ChangeAccountType moves the caller's account to target. Moving to organization
// is refused while the account owns an approved post. Moving to personal deletes
// every owned post with its embedding in the same transaction as the type change.
func (s *AccountService) ChangeAccountType(ctx context.Context, principal domain.Principal, target domain.AccountType) (result *AccountChangeResult, err error) {
	transition, ok := domain.TransitionTo(target)
	if !ok {
		return nil, fieldError("account_type", "must be one of: personal organization")
	}

	ctx, span := startSpan(ctx, "AccountService.ChangeAccountType")
	defer func() {
		if err != nil || result.Changed {
			s.metrics.RecordTransition(machineAccount, "to_"+string(target), outcomeOf(err))
		}
		endSpan(span, err)
	}()

	now := s.now().UTC()
	var (
		user    *domain.User
		from    domain.AccountType
		removed []domain.Post
		changed bool
	)
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		var err error
		user, err = repos.Users.GetByIDForUpdate(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return transitionFailure("lock user", err)
		}
		from = user.AccountType
		if from == transition.Target() {
			return nil
		}

		if transition.RequiresNoApprovedPosts() {
			approved, err := repos.Posts.CountByOwnerAndStatus(ctx, user.ID, domain.PostStatusApproved)
			if err != nil {
				return transitionFailure("count approved posts", err)
			}
			if approved > 0 {
				return ErrHasApprovedPost
			}
		}

		if transition.CascadesPostDeletion() {
			removed, err = repos.Posts.DeleteByOwner(ctx, user.ID)
			if err != nil {
				return transitionFailure("delete posts", err)
			}
			if len(removed) > 0 {
				ids := make([]string, 0, len(removed))
				for _, p := range removed {
					ids = append(ids, p.ID)
				}
				if err := repos.Embeddings.DeleteByPostIDs(ctx, ids); err != nil {
					return transitionFailure("delete embeddings", err)
				}
			}
		}

		if err := repos.Users.UpdateAccountType(ctx, user.ID, transition.Target()); err != nil {
			return transitionFailure("update account type", err)
		}
		title, content := accountTypeMessage(from, transition.Target(), len(removed))
		if err := s.notifier.notify(ctx, repos, user.ID, nil, domain.NotificationAccountTypeChanged, title, content); err != nil {
			return transitionFailure("notify", err)
		}
		user.AccountType = transition.Target()
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTransitionFailed) {
			s.logger.Error("account type change failed", zap.String("user_id", principal.UserID), zap.String("target", string(target)), zap.Error(err))
		}
		return nil, err
	}

	result = &AccountChangeResult{User: sanitize(user), Changed: changed, DeletedPosts: len(removed)}
	if changed {
		s.afterAccountChange(ctx, user, from, removed, now)
	}

	// The change is committed. A failed reissue leaves the caller on the old
	// session; account type is always read from storage, so it stays usable.
	session, issueErr := s.sessions.Issue(principalOf(*user))
	if issueErr != nil {
		s.logger.Error("reissue session after account change failed", zap.String("user_id", user.ID), zap.Error(issueErr))
		return result, nil
	}
	result.Session = session
	return result, nil
}

// afterAccountChange runs the post-commit side effects of a type change.
func (s *AccountService) afterAccountChange(ctx context.Context, user *domain.User, from domain.AccountType, removed []domain.Post, now time.Time) {
	for _, p := range removed {
		s.removeImage(ctx, p)
		post := p
		publishEvent(ctx, s.events, s.logger, "post deleted", func(ctx context.Context) error {
			return s.events.PublishPostDeleted(ctx, domain.PostDeletedEvent{
				EventID:   uuid.NewString(),
				PostID:    post.ID,
				OwnerID:   post.OwnerID,
				Reason:    postDeletedByAccountChange,
				DeletedAt: now,
			})
		})
	}
	publishEvent(ctx, s.events, s.logger, "account type changed", func(ctx context.Context) error {
		return s.events.PublishAccountTypeChanged(ctx, domain.AccountTypeChangedEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			From:         from,
			To:           user.AccountType,
			DeletedPosts: len(removed),
			ChangedAt:    now,
		})
	})
	s.logger.Info("account type changed",
		zap.String("user_id", user.ID),
		zap.String("from", string(from)),
		zap.String("to", string(user.AccountType)),
		zap.Int("deleted_posts", len(removed)),
	)
}

// EnsureCompany creates the caller's company or updates its profile.
func (s *AccountService) EnsureCompany(ctx context.Context, principal domain.Principal, input CompanyInput) (company domain.Company, err error) {
	ctx, span := startSpan(ctx, "AccountService.EnsureCompany")
	defer func() { endSpan(span, err) }()

	input.Name = strings.TrimSpace(input.Name)
	input.Sector = strings.TrimSpace(input.Sector)
	if err := validateInput(input); err != nil {
		return domain.Company{}, err
	}

	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		if _, err := repos.Users.GetByIDForUpdate(ctx, principal.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		existing, err := repos.Companies.GetByUserID(ctx, principal.UserID)
		switch {
		case err == nil:
			company = *existing
			company.Name = input.Name
			company.Sector = input.Sector
			if err := repos.Companies.Update(ctx, company); err != nil {
				return fmt.Errorf("update company: %w", err)
			}
			return nil
		case errors.Is(err, repository.ErrNotFound):
			company = domain.Company{
				ID:        uuid.NewString(),
				UserID:    principal.UserID,
				Name:      input.Name,
				Sector:    input.Sector,
				CreatedAt: s.now().UTC(),
			}
			if err := repos.Companies.Create(ctx, company); err != nil {
				return fmt.Errorf("create company: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("lookup company: %w", err)
		}
	})
	if err != nil {
		return domain.Company{}, err
	}
	return company, nil
}

func (s *AccountService) removeImage(ctx context.Context, post domain.Post) {
	removePostImage(ctx, s.storage, s.logger, post)
}

// removePostImage deletes the stored image of a removed post. Failures leave an orphaned object and are logged.
func removePostImage(ctx context.Context, storage port.ObjectStorage, log *zap.Logger, post domain.Post) {
	if storage == nil || post.PostImage == nil || *post.PostImage == "" {
		return
	}
	if err := storage.Remove(ctx, *post.PostImage); err != nil {
		log.Warn("post image cleanup failed", zap.String("post_id", post.ID), zap.Error(err))
	}
}
