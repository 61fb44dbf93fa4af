package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
	"github.com/XCEIN/consyf-sub000/internal/infra/logger"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
	"github.com/XCEIN/consyf-sub000/internal/infra/security"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

const (
	defaultResetTTL      = time.Hour
	resetTokenByteLength = 32
)

// ResetPasswordInput carries a password reset confirmation.
type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required,max=256"`
	NewPassword string `json:"new_password" validate:"required,max=128"`
}

// PasswordResetService issues and redeems password reset tokens.
type PasswordResetService struct {
	cfg       *config.AppConfig
	store     port.Store
	hasher    port.PasswordHasher
	digester  port.SecretDigester
	mailer    port.Mailer
	events    port.EventPublisher
	limiter   *rateLimiter
	limit     ratelimit.Rule
	validator *security.PasswordValidator
	metrics   port.TransitionRecorder
	logger    *zap.Logger
	now       func() time.Time
	resetTTL  time.Duration
	newSecret func(byteLength int) (string, error)
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	cfg *config.AppConfig,
	store port.Store,
	hasher port.PasswordHasher,
	digester port.SecretDigester,
	mailer port.Mailer,
	rateLimits port.RateLimitStore,
	events port.EventPublisher,
	metrics port.TransitionRecorder,
	logger *zap.Logger,
) *PasswordResetService {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	resetTTL := cfg.Auth.ResetTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &PasswordResetService{
		cfg:       cfg,
		store:     store,
		hasher:    hasher,
		digester:  digester,
		mailer:    mailer,
		events:    events,
		limiter:   newRateLimiter(rateLimits, logger),
		limit:     ratelimit.RulesFrom(cfg.RateLimit).PasswordReset,
		validator: security.DefaultPasswordValidator(cfg.Auth.PasswordMinLength, cfg.Auth.PasswordMinStrength),
		metrics:   recorderOrNop(metrics),
		logger:    logger,
		now:       time.Now,
		resetTTL:  resetTTL,
		newSecret: security.GenerateSecureToken,
	}
}

// WithClock overrides the time source.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithSecretGenerator overrides the reset token generator.
func (s *PasswordResetService) WithSecretGenerator(gen func(byteLength int) (string, error)) {
	if gen != nil {
		s.newSecret = gen
	}
}

// RequestReset mails a reset link when the email belongs to an account. The
// result is the same whether or not the account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	ctx, span := startSpan(ctx, "PasswordResetService.RequestReset")
	defer func() { endSpan(span, err) }()

	email = domain.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return fieldError("email", "must be a valid email address")
	}

	now := s.now().UTC()
	if err := s.limiter.enforce(ctx, s.limit, email, now); err != nil {
		return err
	}

	repos := s.store.Repositories()
	user, err := repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	raw, err := s.newSecret(resetTokenByteLength)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := domain.Token{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Purpose:    domain.TokenPurposePasswordReset,
		SecretHash: s.digester.Digest(raw),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.resetTTL),
	}
	if err := repos.Tokens.Create(ctx, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.deliverResetLink(ctx, user.Email, raw)
	return nil
}

// ResetPassword redeems a reset token and replaces the password. The token is
// matched and consumed in the same transaction so it can be used at most once.
func (s *PasswordResetService) ResetPassword(ctx context.Context, input ResetPasswordInput) (err error) {
	ctx, span := startSpan(ctx, "PasswordResetService.ResetPassword")
	defer func() {
		s.metrics.RecordTransition(machineCredential, "reset_password", outcomeOf(err))
		endSpan(span, err)
	}()

	input.Token = strings.TrimSpace(input.Token)
	if err := validateInput(input); err != nil {
		return err
	}
	if err := s.validator.Validate(input.NewPassword); err != nil {
		return fieldError("new_password", err.Error())
	}

	passwordHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	var userID string
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		token, err := repos.Tokens.FindActiveBySecret(ctx, domain.TokenPurposePasswordReset, s.digester.Digest(input.Token), now)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("lookup reset token: %w", err)
		}
		if err := repos.Tokens.Consume(ctx, token.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return fmt.Errorf("consume reset token: %w", err)
		}
		if err := repos.Users.UpdatePassword(ctx, token.UserID, passwordHash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		userID = token.UserID
		return nil
	})
	if err != nil {
		return err
	}

	publishEvent(ctx, s.events, s.logger, "password reset", func(ctx context.Context) error {
		return s.events.PublishPasswordReset(ctx, domain.PasswordResetEvent{
			EventID: uuid.NewString(),
			UserID:  userID,
			ResetAt: now,
		})
	})
	s.logger.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

func (s *PasswordResetService) resetLink(raw string) string {
	base := strings.TrimRight(s.cfg.App.BaseURL, "/")
	return fmt.Sprintf("%s/reset-password?token=%s", base, url.QueryEscape(raw))
}

func (s *PasswordResetService) deliverResetLink(ctx context.Context, email, raw string) {
	if s.mailer == nil {
		return
	}
	body := fmt.Sprintf("Use the link below to choose a new password. It expires in %s.\n\n%s\n\nIf you did not request this, ignore this message.", s.resetTTL, s.resetLink(raw))
	if err := s.mailer.Send(ctx, email, "Reset your password", body); err != nil {
		s.logger.Warn("reset mail delivery failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
}
