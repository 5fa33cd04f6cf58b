package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/credential-service/internal/domain"
)

const pgUniqueViolation = "23505"

type postgresIdentityRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresIdentityRepository returns a Postgres-backed implementation.
// The identities.email unique index is the authority for uniqueness.
func NewPostgresIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &postgresIdentityRepository{pool: pool}
}

func (r *postgresIdentityRepository) Save(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
	).Scan(&identity.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateIdentity
	}
	return err
}

func (r *postgresIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `
        SELECT id, email, password_hash, created_at
        FROM identities WHERE email=$1`

	return r.scanOne(ctx, query, email)
}

func (r *postgresIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `
        SELECT id, email, password_hash, created_at
        FROM identities WHERE id=$1`

	return r.scanOne(ctx, query, id)
}

func (r *postgresIdentityRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresIdentityRepository) scanOne(ctx context.Context, query string, arg string) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
