// Package ratelimit evaluates named sliding-window limits over a port.RateLimitStore.
// The HTTP layer and the use cases share the same rules and key layout.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/XCEIN/consyf-sub000/internal/core/port"
	"github.com/XCEIN/consyf-sub000/internal/infra/config"
)

// Scopes prefix every stored key.
const (
	ScopeLogin         = "login"
	ScopeRegister      = "register"
	ScopeResendOTP     = "resend_otp"
	ScopeVerifyEmail   = "verify_email"
	ScopePasswordReset = "password_reset"
	ScopePublicIP      = "ip"
)

const defaultWindow = 15 * time.Minute

// Rule is a sliding-window limit. A non-positive Limit disables it.
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule limits anything.
func (r Rule) Enabled() bool {
	return r.Scope != "" && r.Limit > 0 && r.Window > 0
}

// Key builds the store key for identifier under the rule's scope.
func (r Rule) Key(identifier string) string {
	return r.Scope + ":" + identifier
}

// Rules holds every limit the service applies.
type Rules struct {
	Login         Rule
	Register      Rule
	ResendOTP     Rule
	VerifyEmail   Rule
	PasswordReset Rule
	PublicIP      Rule
}

// RulesFrom builds the rule set from configuration. All rules share one window.
func RulesFrom(cfg config.RateLimitSettings) Rules {
	window := cfg.WindowDuration
	if window <= 0 {
		window = defaultWindow
	}
	rule := func(scope string, limit int) Rule {
		return Rule{Scope: scope, Limit: limit, Window: window}
	}
	return Rules{
		Login:         rule(ScopeLogin, cfg.LoginMaxAttempts),
		Register:      rule(ScopeRegister, cfg.RegisterMaxAttempts),
		ResendOTP:     rule(ScopeResendOTP, cfg.ResendOTPMaxAttempts),
		VerifyEmail:   rule(ScopeVerifyEmail, cfg.VerifyEmailMaxAttempts),
		PasswordReset: rule(ScopePasswordReset, cfg.PasswordResetMaxAttempts),
		PublicIP:      rule(ScopePublicIP, cfg.PublicIPMaxAttempts),
	}
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter runs rules against the attempt store.
type Limiter struct {
	store port.RateLimitStore
}

// New wraps store. A nil store allows everything.
func New(store port.RateLimitStore) *Limiter {
	return &Limiter{store: store}
}

// Check trims the window, counts the attempts inside it and either rejects the
// request or records it. Identifiers are case-folded so "Ann@x.com" and
// "ann@x.com" share a bucket.
func (l *Limiter) Check(ctx context.Context, rule Rule, identifier string, now time.Time) (Decision, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if l == nil || l.store == nil || !rule.Enabled() || identifier == "" {
		return Decision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}, nil
	}
	key := rule.Key(identifier)

	if err := l.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return Decision{}, err
	}
	count, err := l.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return Decision{}, err
	}
	oldest, hasAttempts, err := l.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: true, Limit: rule.Limit, Reset: now.Add(rule.Window)}
	if hasAttempts {
		d.Reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		d.Allowed = false
		d.RetryAfter = max(d.Reset.Sub(now), 0)
		return d, nil
	}

	if err := l.store.RecordAttempt(ctx, key, now); err != nil {
		return Decision{}, err
	}
	d.Remaining = max(rule.Limit-count-1, 0)
	return d, nil
}
