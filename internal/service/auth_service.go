package service

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/config"
	"github.com/spec-kit/credential-service/internal/domain"
	"github.com/spec-kit/credential-service/internal/events"
	"github.com/spec-kit/credential-service/internal/observability"
	"github.com/spec-kit/credential-service/internal/repository"
	apperrors "github.com/spec-kit/credential-service/pkg/util/errorutil"
)

const (
	opRegister = "register"
	opLogin    = "login"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	identities repository.IdentityRepository
	hasher     *auth.Hasher
	tokenMgr   *auth.TokenManager
	validator  *CredentialValidator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	uniform    bool
	dummyHash  string
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
// Dispatcher and Metrics are optional.
type AuthDependencies struct {
	IdentityRepo repository.IdentityRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &AuthService{
		identities: deps.IdentityRepo,
		hasher:     auth.NewHasher(cfg.Auth.BcryptCost),
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenIssuer, cfg.Auth.AccessTokenTTL()),
		validator:  NewCredentialValidator(cfg.Auth),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		uniform:    cfg.Auth.UniformLoginErrors,
		now:        time.Now,
	}

	if s.uniform {
		// unknown emails still pay for one bcrypt comparison
		hash, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			return nil, err
		}
		s.dummyHash = hash
	}
	return s, nil
}

// Register creates a new identity. On success exactly one record is stored.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := s.register(ctx, email, password)
	s.recordOutcome(opRegister, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventIdentityRegistered,
		IdentityID: identity.ID,
		Email:      identity.Email,
	})
	return identity, nil
}

func (s *AuthService) register(ctx context.Context, email, password string) (*domain.Identity, error) {
	if err := s.validator.ValidateRegistration(email, password); err != nil {
		return nil, err
	}

	// Fast path only; the store's uniqueness check in Save is authoritative.
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateIdentity()
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, apperrors.NewStorageFailure(err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.identities.Save(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, apperrors.NewDuplicateIdentity()
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	return identity, nil
}

// Login verifies credentials and issues a signed token. It never writes to the store.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Token, error) {
	token, identityID, err := s.login(ctx, email, password)
	s.recordOutcome(opLogin, err)

	if err != nil {
		if reason := loginFailureReason(err); reason != "" {
			s.publish(ctx, events.Event{
				Type:       events.EventLoginFailed,
				IdentityID: identityID,
				Email:      email,
				Payload:    events.LoginFailedPayload{Reason: reason},
			})
		}
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventLoginSucceeded,
		IdentityID: token.IdentityID,
		Email:      email,
		Payload:    events.LoginSucceededPayload{TokenExpiresAt: token.ExpiresAt},
	})
	return token, nil
}

func (s *AuthService) login(ctx context.Context, email, password string) (*domain.Token, string, error) {
	if err := s.validator.ValidateLogin(email, password); err != nil {
		return nil, "", err
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, "", apperrors.NewStorageFailure(err)
		}
		if s.uniform {
			_ = s.hasher.ComparePassword(s.dummyHash, password)
			return nil, "", apperrors.NewInvalidCredential()
		}
		return nil, "", apperrors.NewIdentityNotFound()
	}

	if s.validator.ExceedsMaxBytes(password) {
		return nil, identity.ID, apperrors.NewInvalidCredential()
	}
	if err := s.hasher.ComparePassword(identity.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, identity.ID, apperrors.NewInvalidCredential()
		}
		return nil, identity.ID, apperrors.NewInternalError(err)
	}

	token, err := s.tokenMgr.GenerateToken(identity.ID)
	if err != nil {
		return nil, identity.ID, apperrors.NewInternalError(err)
	}
	return token, identity.ID, nil
}

// Authenticate resolves a bearer token to its identity. Expired, tampered or
// orphaned tokens are reported as UNAUTHORIZED.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*domain.Identity, error) {
	claims, err := s.tokenMgr.ParseToken(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorized("token expired")
		}
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	if _, err := uuid.Parse(claims.IdentityID()); err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	identity, err := s.identities.GetByID(ctx, claims.IdentityID())
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, apperrors.NewUnauthorized("identity not found")
		}
		return nil, apperrors.NewStorageFailure(err)
	}
	return identity, nil
}

// Ready reports whether the credential store is reachable.
func (s *AuthService) Ready(ctx context.Context) error {
	return s.identities.Ping(ctx)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Debug("event delivery incomplete",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (s *AuthService) recordOutcome(operation string, err error) {
	s.metrics.RecordAuthOutcome(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	switch apperrors.ToDomainError(err).Code {
	case apperrors.CodeDuplicateIdentity:
		return observability.OutcomeDuplicateIdentity
	case apperrors.CodeIdentityNotFound:
		return observability.OutcomeIdentityNotFound
	case apperrors.CodeInvalidCredential:
		return observability.OutcomeInvalidCredential
	case apperrors.CodeValidationFailed:
		return observability.OutcomeValidationFailure
	case apperrors.CodeStorageFailure:
		return observability.OutcomeStorageFailure
	default:
		return observability.OutcomeInternalError
	}
}

func loginFailureReason(err error) string {
	switch apperrors.ToDomainError(err).Code {
	case apperrors.CodeIdentityNotFound:
		return "identity_not_found"
	case apperrors.CodeInvalidCredential:
		return "invalid_credential"
	default:
		return ""
	}
}
