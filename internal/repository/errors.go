package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrPhoneConflict indicates the phone number is already taken. It wraps ErrConflict.
	ErrPhoneConflict = fmt.Errorf("%w: phone", ErrConflict)
)
