package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// lifecycleErrorCases covers every sentinel a use case may return. Order matters:
// the first errors.Is match wins.
var lifecycleErrorCases = []ErrorCase{
	{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
	{Err: usecase.ErrDuplicatePhone, Status: http.StatusConflict, Message: "phone already registered"},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrInvalidOrExpiredOTP, Status: http.StatusBadRequest, Message: "invalid or expired verification code"},
	{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
	{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict, Message: "email already verified"},
	{Err: usecase.ErrHasApprovedPost, Status: http.StatusConflict, Message: "account has an approved post"},
	{Err: usecase.ErrPostLimitReached, Status: http.StatusConflict, Message: "personal accounts may own a single post"},
	{Err: domain.ErrInvalidTransition, Status: http.StatusConflict, Message: "post cannot move to the requested status"},
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "authentication required"},
	{Err: usecase.ErrUnauthorized, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	// the access log reports the internal detail; the client only sees the fallback
	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// respondError renders a use-case error. Structured errors keep their detail;
// anything unrecognised becomes an opaque 500.
func respondError(c *gin.Context, err error) {
	var verr *usecase.ValidationError
	if errors.As(err, &verr) {
		resp := NewErrorResponse(c, "validation failed")
		resp.Fields = verr.Fields
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	var unverified *usecase.VerificationRequiredError
	if errors.As(err, &unverified) {
		resp := NewErrorResponse(c, "email verification required")
		resp.Email = unverified.Email
		c.JSON(http.StatusForbidden, resp)
		return
	}

	var limited *usecase.RateLimitExceededError
	if errors.As(err, &limited) {
		seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
		if seconds > 0 {
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many attempts, try again later"))
		return
	}

	RespondWithMappedError(c, err, lifecycleErrorCases, http.StatusInternalServerError, "internal server error")
}

func respondBadPayload(c *gin.Context) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
}
