package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// GenerateNumericCode returns a uniformly random decimal string of the given length.
// Leading zeros are allowed.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	ten := big.NewInt(10)
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SecretDigester derives lookup digests for one-time secrets with HMAC-SHA256.
// Without the key a stored digest cannot be matched by enumerating the code space.
type SecretDigester struct {
	key []byte
}

// NewSecretDigester builds a digester over key.
func NewSecretDigester(key string) (*SecretDigester, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("digest key must not be empty")
	}
	return &SecretDigester{key: []byte(key)}, nil
}

// Digest returns the hex-encoded HMAC of value.
func (d *SecretDigester) Digest(value string) string {
	mac := hmac.New(sha256.New, d.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
