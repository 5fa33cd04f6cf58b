package domain

import (
	"errors"
	"time"
)

// Identity is a registered email together with its password hash.
// Email is matched exactly; no case folding is applied.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store-level sentinels. Repositories translate backend specific errors into these.
var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrDuplicateIdentity = errors.New("identity already exists")
)
