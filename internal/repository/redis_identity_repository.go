package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/credential-service/internal/domain"
)

type redisIdentityRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type redisIdentityRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisIdentityRepository stores each identity as a JSON document under
// its email key, with a secondary id -> email index. SETNX on the email key
// is the uniqueness authority.
func NewRedisIdentityRepository(client *redis.Client, keyPrefix string) IdentityRepository {
	return &redisIdentityRepository{client: client, prefix: keyPrefix}
}

func (r *redisIdentityRepository) emailKey(email string) string {
	return r.prefix + "identity:email:" + email
}

func (r *redisIdentityRepository) idKey(id string) string {
	return r.prefix + "identity:id:" + id
}

func (r *redisIdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(redisIdentityRecord{
		ID:           identity.ID,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
		CreatedAt:    identity.CreatedAt,
	})
	if err != nil {
		return err
	}

	emailKey := r.emailKey(identity.Email)
	created, err := r.client.SetNX(ctx, emailKey, payload, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrDuplicateIdentity
	}

	if err := r.client.Set(ctx, r.idKey(identity.ID), identity.Email, 0).Err(); err != nil {
		// no partial records: drop the email key we just claimed
		_ = r.client.Del(context.WithoutCancel(ctx), emailKey).Err()
		return err
	}
	return nil
}

func (r *redisIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	raw, err := r.client.Get(ctx, r.emailKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}

	var record redisIdentityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &domain.Identity{
		ID:           record.ID,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		CreatedAt:    record.CreatedAt,
	}, nil
}

func (r *redisIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	email, err := r.client.Get(ctx, r.idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return r.FindByEmail(ctx, email)
}

func (r *redisIdentityRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.New("redis client not configured")
	}
	return r.client.Ping(ctx).Err()
}
