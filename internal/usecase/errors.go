package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

var (
	// ErrDuplicateEmail indicates the email already belongs to an account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicatePhone indicates the phone number already belongs to an account.
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrInvalidCredentials indicates the identifier or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrVerificationRequired indicates the account exists but its email is not verified.
	ErrVerificationRequired = errors.New("email verification required")
	// ErrInvalidOrExpiredOTP indicates no active verification code matched.
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired verification code")
	// ErrInvalidOrExpiredToken indicates no active password reset token matched.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	// ErrHasApprovedPost blocks personal to organization transitions.
	ErrHasApprovedPost = errors.New("account has an approved post")
	// ErrUnauthenticated indicates a missing or invalid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the caller lacks the role or ownership required.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested entity does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrTransitionFailed hides data-layer failures raised during a lifecycle transition.
	ErrTransitionFailed = errors.New("transition failed")
	// ErrAlreadyVerified indicates a verification code was requested for a verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrPostLimitReached indicates a personal account already owns a post.
	ErrPostLimitReached = errors.New("personal accounts may own a single post")
	// ErrRateLimited is the sentinel wrapped by RateLimitExceededError.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// RateLimitExceededError reports a throttled flow and when it may be retried.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Scope)
}

func (e *RateLimitExceededError) Unwrap() error { return ErrRateLimited }

// ValidationError carries field-level input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// VerificationRequiredError is returned by login for unverified accounts so the
// caller can route to the verification step.
type VerificationRequiredError struct {
	Email string
}

func (e *VerificationRequiredError) Error() string {
	return ErrVerificationRequired.Error()
}

func (e *VerificationRequiredError) Unwrap() error { return ErrVerificationRequired }

// transitionFailure wraps an unexpected store error so callers only see ErrTransitionFailed.
func transitionFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransitionFailed, op, err)
}

// isDomainRejection reports whether err is an expected rule violation rather than a failure.
func isDomainRejection(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, target := range []error{
		ErrDuplicateEmail, ErrDuplicatePhone, ErrInvalidCredentials, ErrVerificationRequired, ErrInvalidOrExpiredOTP,
		ErrInvalidOrExpiredToken, ErrHasApprovedPost, ErrUnauthenticated, ErrUnauthorized,
		ErrNotFound, ErrAlreadyVerified, ErrPostLimitReached, ErrRateLimited, domain.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
