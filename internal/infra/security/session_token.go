package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
	"github.com/XCEIN/consyf-sub000/internal/core/port"
)

// ErrInvalidSessionToken covers malformed, expired and wrongly signed tokens alike.
var ErrInvalidSessionToken = errors.New("session token invalid")

const minSecretLength = 32

// SessionClaims is the JWT body of a session token.
type SessionClaims struct {
	Email       string `json:"email"`
	AccountType string `json:"account_type"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// SessionTokenManager issues and parses HS256 session tokens. There is no
// server-side revocation; expiry is the only way a token stops working.
type SessionTokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenManager validates the secret and returns a manager.
func NewSessionTokenManager(secret, issuer string, ttl time.Duration) (*SessionTokenManager, error) {
	if len(strings.TrimSpace(secret)) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionTokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the clock used for iat/exp and validation.
func (m *SessionTokenManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// Issue signs a token for the principal.
func (m *SessionTokenManager) Issue(principal domain.Principal) (domain.Session, error) {
	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.ttl)

	claims := SessionClaims{
		Email:       principal.Email,
		AccountType: string(principal.AccountType),
		Role:        string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return domain.Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// Parse verifies signature, issuer and expiry, and returns the embedded principal.
func (m *SessionTokenManager) Parse(token string) (domain.Principal, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Principal{}, ErrInvalidSessionToken
	}

	accountType := domain.AccountType(claims.AccountType)
	if claims.Subject == "" || !accountType.Valid() {
		return domain.Principal{}, ErrInvalidSessionToken
	}

	return domain.Principal{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccountType: accountType,
		Role:        domain.Role(claims.Role),
	}, nil
}

var _ port.SessionTokens = (*SessionTokenManager)(nil)
