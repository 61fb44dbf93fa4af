package port

import (
	"context"

	"github.com/XCEIN/consyf-sub000/internal/core/domain"
)

// Mailer delivers plain-text messages.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ObjectStorage removes uploaded objects referenced by posts.
type ObjectStorage interface {
	Remove(ctx context.Context, key string) error
}

// Embedder turns a post description into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// SecretDigester maps a one-time secret to the value stored for lookup.
type SecretDigester interface {
	Digest(value string) string
}

// SessionTokens issues and parses stateless session tokens.
type SessionTokens interface {
	Issue(principal domain.Principal) (domain.Session, error)
	Parse(token string) (domain.Principal, error)
}

// TransitionRecorder counts lifecycle transition outcomes.
type TransitionRecorder interface {
	RecordTransition(machine, transition, outcome string)
}
