package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/credential-service/internal/domain"
)

// MemoryIdentityRepository keeps identities in process memory. It is used for
// local development and tests; data does not survive a restart.
type MemoryIdentityRepository struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Identity
	byID    map[string]string
}

// NewMemoryIdentityRepository returns an empty store.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		byEmail: make(map[string]domain.Identity),
		byID:    make(map[string]string),
	}
}

func (r *MemoryIdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[identity.Email]; exists {
		return domain.ErrDuplicateIdentity
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	r.byEmail[identity.Email] = *identity
	r.byID[identity.ID] = identity.Email
	return nil
}

func (r *MemoryIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return &identity, nil
}

func (r *MemoryIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	email, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	identity := r.byEmail[email]
	return &identity, nil
}

func (r *MemoryIdentityRepository) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored identities.
func (r *MemoryIdentityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
