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
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
	"github.com/XCEIN/consyf-sub000/internal/infra/logger"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
	"github.com/XCEIN/consyf-sub000/internal/infra/security"
	"github.com/XCEIN/consyf-sub000/internal/repository"
)

const (
	defaultOTPTTL    = 5 * time.Minute
	defaultOTPLength = 4
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterResult describes the new account and when its verification code lapses.
type RegisterResult struct {
	User         domain.User
	OTPExpiresAt time.Time
}

// VerifyEmailInput carries an email verification attempt.
type VerifyEmailInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

// LoginInput carries a login attempt by email or phone.
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required"`
}

// AuthResult is returned by flows that open a session.
type AuthResult struct {
	User    domain.User
	Session domain.Session
}

// CredentialService owns registration, email verification, login and session resolution.
type CredentialService struct {
	cfg         *config.AppConfig
	store       port.Store
	hasher      port.PasswordHasher
	digester    port.SecretDigester
	sessions    port.SessionTokens
	mailer      port.Mailer
	events      port.EventPublisher
	limiter     *rateLimiter
	limits      ratelimit.Rules
	validator   *security.PasswordValidator
	metrics     port.TransitionRecorder
	logger      *zap.Logger
	now         func() time.Time
	otpTTL      time.Duration
	otpLength   int
	generateOTP func(length int) (string, error)
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(
	cfg *config.AppConfig,
	store port.Store,
	hasher port.PasswordHasher,
	digester port.SecretDigester,
	sessions port.SessionTokens,
	mailer port.Mailer,
	rateLimits port.RateLimitStore,
	events port.EventPublisher,
	metrics port.TransitionRecorder,
	logger *zap.Logger,
) *CredentialService {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	otpTTL := cfg.Auth.OTPTTL
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	otpLength := cfg.Auth.OTPLength
	if otpLength <= 0 {
		otpLength = defaultOTPLength
	}
	return &CredentialService{
		cfg:         cfg,
		store:       store,
		hasher:      hasher,
		digester:    digester,
		sessions:    sessions,
		mailer:      mailer,
		events:      events,
		limiter:     newRateLimiter(rateLimits, logger),
		limits:      ratelimit.RulesFrom(cfg.RateLimit),
		validator:   security.DefaultPasswordValidator(cfg.Auth.PasswordMinLength, cfg.Auth.PasswordMinStrength),
		metrics:     recorderOrNop(metrics),
		logger:      logger,
		now:         time.Now,
		otpTTL:      otpTTL,
		otpLength:   otpLength,
		generateOTP: security.GenerateNumericCode,
	}
}

// WithClock overrides the time source.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithCodeGenerator overrides the verification code generator.
func (s *CredentialService) WithCodeGenerator(gen func(length int) (string, error)) {
	if gen != nil {
		s.generateOTP = gen
	}
}

// Register creates an unverified personal account and sends its first verification code.
// Mail delivery failures are logged; the account can request a resend.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (result *RegisterResult, err error) {
	ctx, span := startSpan(ctx, "CredentialService.Register")
	defer func() { endSpan(span, err) }()

	input.Name = strings.TrimSpace(input.Name)
	input.Email = domain.NormalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Password); err != nil {
		return nil, fieldError("password", err.Error())
	}

	now := s.now().UTC()
	if err := s.limiter.enforce(ctx, s.limits.Register, input.Email, now); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		AccountType:  domain.AccountTypePersonal,
		CreatedAt:    now,
	}
	if input.Phone != "" {
		phone := input.Phone
		user.Phone = &phone
	}

	var code string
	var expiresAt time.Time
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		if _, err := repos.Users.GetByEmail(ctx, user.Email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup email: %w", err)
		}
		if user.Phone != nil {
			if _, err := repos.Users.GetByPhone(ctx, *user.Phone); err == nil {
				return ErrDuplicatePhone
			} else if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("lookup phone: %w", err)
			}
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrPhoneConflict) {
				return ErrDuplicatePhone
			}
			if errors.Is(err, repository.ErrConflict) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		var err error
		code, expiresAt, err = s.issueOTP(ctx, repos, user.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deliverOTP(ctx, user.Email, code)
	s.publish(ctx, "user registered", func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Email:        user.Email,
			AccountType:  user.AccountType,
			RegisteredAt: now,
		})
	})
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)))

	return &RegisterResult{User: sanitize(&user), OTPExpiresAt: expiresAt}, nil
}

// ResendOTP issues a fresh verification code. Earlier codes stay valid until they expire.
func (s *CredentialService) ResendOTP(ctx context.Context, email string) (expiresAt time.Time, err error) {
	ctx, span := startSpan(ctx, "CredentialService.ResendOTP")
	defer func() { endSpan(span, err) }()

	email = domain.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return time.Time{}, fieldError("email", "must be a valid email address")
	}

	now := s.now().UTC()
	if err := s.limiter.enforce(ctx, s.limits.ResendOTP, email, now); err != nil {
		return time.Time{}, err
	}

	var code string
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		user, err := repos.Users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup user: %w", err)
		}
		if user.EmailVerified {
			return ErrAlreadyVerified
		}
		code, expiresAt, err = s.issueOTP(ctx, repos, user.ID, now)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}

	s.deliverOTP(ctx, email, code)
	return expiresAt, nil
}

// VerifyEmail consumes the newest matching code, marks the email verified and
// opens a session. Attempts are throttled per email so the short code cannot be
// searched exhaustively.
func (s *CredentialService) VerifyEmail(ctx context.Context, input VerifyEmailInput) (result *AuthResult, err error) {
	ctx, span := startSpan(ctx, "CredentialService.VerifyEmail")
	defer func() {
		s.metrics.RecordTransition(machineCredential, "verify_email", outcomeOf(err))
		endSpan(span, err)
	}()

	input.Email = domain.NormalizeEmail(input.Email)
	input.OTP = strings.TrimSpace(input.OTP)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.limiter.enforce(ctx, s.limits.VerifyEmail, input.Email, now); err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.store.InTx(ctx, func(repos port.Repositories) error {
		var err error
		user, err = repos.Users.GetByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredOTP
			}
			return fmt.Errorf("lookup user: %w", err)
		}

		token, err := repos.Tokens.FindLatestActive(ctx, user.ID, domain.TokenPurposeEmailVerification, s.digester.Digest(input.OTP), now)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredOTP
			}
			return fmt.Errorf("lookup verification code: %w", err)
		}
		if err := repos.Tokens.Consume(ctx, token.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredOTP
			}
			return fmt.Errorf("consume verification code: %w", err)
		}
		if err := repos.Users.MarkEmailVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		user.EmailVerified = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Issue(principalOf(*user))
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.publish(ctx, "user verified", func(ctx context.Context) error {
		return s.events.PublishUserVerified(ctx, domain.UserVerifiedEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			Email:      user.Email,
			VerifiedAt: now,
		})
	})

	return &AuthResult{User: sanitize(user), Session: session}, nil
}

// Login authenticates by email or phone. An identifier containing "@" is looked
// up as an email and anything else as a phone. Unknown identifiers and wrong
// passwords both yield ErrInvalidCredentials; unverified accounts yield
// VerificationRequiredError.
func (s *CredentialService) Login(ctx context.Context, input LoginInput) (result *AuthResult, err error) {
	ctx, span := startSpan(ctx, "CredentialService.Login")
	defer func() { endSpan(span, err) }()

	input.Identifier = normalizeIdentifier(input.Identifier)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.limiter.enforce(ctx, s.limits.Login, input.Identifier, now); err != nil {
		return nil, err
	}

	users := s.store.Repositories().Users
	var user *domain.User
	if strings.Contains(input.Identifier, "@") {
		user, err = users.GetByEmail(ctx, input.Identifier)
	} else {
		user, err = users.GetByPhone(ctx, input.Identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash verification failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, &VerificationRequiredError{Email: user.Email}
	}

	session, err := s.sessions.Issue(principalOf(*user))
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &AuthResult{User: sanitize(user), Session: session}, nil
}

// Authenticate resolves a bearer token into the caller's principal.
func (s *CredentialService) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	principal, err := s.sessions.Parse(token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return principal, nil
}

// GetProfile returns the caller's own account.
func (s *CredentialService) GetProfile(ctx context.Context, principal domain.Principal) (domain.User, error) {
	user, err := s.store.Repositories().Users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return sanitize(user), nil
}

func (s *CredentialService) issueOTP(ctx context.Context, repos port.Repositories, userID string, now time.Time) (string, time.Time, error) {
	code, err := s.generateOTP(s.otpLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate verification code: %w", err)
	}
	token := domain.Token{
		ID:         uuid.NewString(),
		UserID:     userID,
		Purpose:    domain.TokenPurposeEmailVerification,
		SecretHash: s.digester.Digest(code),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.otpTTL),
	}
	if err := repos.Tokens.Create(ctx, token); err != nil {
		return "", time.Time{}, fmt.Errorf("store verification code: %w", err)
	}
	return code, token.ExpiresAt, nil
}

func (s *CredentialService) deliverOTP(ctx context.Context, email, code string) {
	if s.mailer == nil {
		return
	}
	body := fmt.Sprintf("Your verification code is %s.\nIt expires in %s.", code, s.otpTTL)
	if err := s.mailer.Send(ctx, email, "Verify your email", body); err != nil {
		s.logger.Warn("verification mail delivery failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
}

func (s *CredentialService) publish(ctx context.Context, what string, fn func(context.Context) error) {
	publishEvent(ctx, s.events, s.logger, what, fn)
}

// publishEvent runs a best-effort publish after commit.
func publishEvent(ctx context.Context, events port.EventPublisher, log *zap.Logger, what string, fn func(context.Context) error) {
	if events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		log.Warn("event publish failed", zap.String("event", what), zap.Error(err))
	}
}
