package domain

import "time"

// Token describes a freshly issued access token. It is never persisted.
type Token struct {
	Value      string
	IdentityID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
