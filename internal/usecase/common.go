package usecase

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
	"github.com/XCEIN/consyf-sub000/internal/infra/telemetry"
)

const tracerName = "github.com/XCEIN/consyf-sub000/internal/usecase"

// State machine labels used for transition metrics.
const (
	machineCredential = "credential"
	machineAccount    = "account"
	machineModeration = "moderation"
)

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// endSpan marks the span failed when err is set and closes it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recorderOrNop(r port.TransitionRecorder) port.TransitionRecorder {
	if r == nil {
		return telemetry.NopRecorder{}
	}
	return r
}

// outcomeOf classifies an operation result for transition metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case isDomainRejection(err):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

func principalOf(user domain.User) domain.Principal {
	return domain.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		AccountType: user.AccountType,
		Role:        user.Role,
	}
}

func sanitize(user *domain.User) domain.User {
	u := *user
	u.PasswordHash = ""
	return u
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return domain.NormalizeEmail(identifier)
	}
	return identifier
}

// rateLimiter applies the shared sliding-window rules. Store failures are
// logged and the request is allowed.
type rateLimiter struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

func newRateLimiter(store port.RateLimitStore, logger *zap.Logger) *rateLimiter {
	return &rateLimiter{limiter: ratelimit.New(store), logger: logger}
}

func (l *rateLimiter) enforce(ctx context.Context, rule ratelimit.Rule, identifier string, now time.Time) error {
	decision, err := l.limiter.Check(ctx, rule, identifier, now)
	if err != nil {
		l.logger.Warn("rate limit check failed", zap.String("scope", rule.Scope), zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		return &RateLimitExceededError{Scope: rule.Scope, RetryAfter: decision.RetryAfter}
	}
	return nil
}
