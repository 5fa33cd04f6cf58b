package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/credential-service/internal/api/dto"
	"github.com/spec-kit/credential-service/internal/auth"
	"github.com/spec-kit/credential-service/internal/service"
	apperrors "github.com/spec-kit/credential-service/pkg/util/errorutil"
)

// IdentityHandler exposes the register, login and current-identity endpoints.
type IdentityHandler struct {
	auth *service.AuthService
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(authService *service.AuthService) *IdentityHandler {
	return &IdentityHandler{auth: authService}
}

// Register handles POST /register.
func (h *IdentityHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.auth.Register(c.UserContext(), req.Email, req.Password); err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.MessageResponse{Message: "identity registered"})
}

// Login handles POST /login.
func (h *IdentityHandler) Login(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.AuthResponse{
		Token:     token.Value,
		TokenType: "Bearer",
		ExpiresAt: token.ExpiresAt,
	})
}

// Me handles GET /me for an authenticated caller.
func (h *IdentityHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}

	return c.JSON(dto.IdentityResponse{
		ID:        identity.ID,
		Email:     identity.Email,
		CreatedAt: identity.CreatedAt,
	})
}
