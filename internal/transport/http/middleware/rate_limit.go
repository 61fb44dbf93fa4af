package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
	appLogger "github.com/XCEIN/consyf-sub000/internal/infra/logger"
	"github.com/XCEIN/consyf-sub000/internal/infra/ratelimit"
)

const (
	rateLimitProblemType  = "about:blank#rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// IdentifierFunc extracts the key a request is throttled by.
type IdentifierFunc func(*gin.Context) (string, bool)

// ProblemDetails is the RFC 9457 body returned with a 429.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter throttles requests before they reach a handler. It evaluates the
// same ratelimit rules and store the use cases apply per email.
type RateLimiter struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRateLimiter builds the middleware over store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{limiter: ratelimit.New(store), logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier keys requests by client IP.
func ClientIPIdentifier(c *gin.Context) (string, bool) {
	ip := c.ClientIP()
	return ip, ip != ""
}

// LimitByIP applies rule per client IP.
func (rl *RateLimiter) LimitByIP(rule ratelimit.Rule) gin.HandlerFunc {
	return rl.Limit(rule, ClientIPIdentifier)
}

// Limit applies rule per identifier. A disabled rule yields a pass-through
// handler; store failures are logged and the request is let through.
func (rl *RateLimiter) Limit(rule ratelimit.Rule, identify IdentifierFunc) gin.HandlerFunc {
	if !rule.Enabled() || identify == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		identifier, ok := identify(c)
		if !ok {
			c.Next()
			return
		}

		decision, err := rl.limiter.Check(c.Request.Context(), rule, identifier, rl.now())
		if err != nil {
			rl.logger.Warn("rate limit check failed",
				zap.String("scope", rule.Scope),
				zap.String("identifier", appLogger.MaskIP(identifier)),
				zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, decision)
		if !decision.Allowed {
			respondRateLimited(c, decision)
			return
		}
		c.Next()
	}
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(d.RetryAfter)))
	}
}

func respondRateLimited(c *gin.Context, d ratelimit.Decision) {
	seconds := retrySeconds(d.RetryAfter)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}
