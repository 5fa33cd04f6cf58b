package repository

import (
	"context"

	"github.com/spec-kit/credential-service/internal/domain"
)

// IdentityRepository is the credential store. Implementations must enforce
// email uniqueness themselves: Save returns domain.ErrDuplicateIdentity when
// the email is already taken, even if a concurrent caller won the race after
// the service's pre-check.
type IdentityRepository interface {
	Save(ctx context.Context, identity *domain.Identity) error
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	Ping(ctx context.Context) error
}
