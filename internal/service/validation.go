package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/credential-service/internal/config"
	apperrors "github.com/spec-kit/credential-service/pkg/util/errorutil"
)

// CredentialValidator enforces the email and password bounds before any
// input reaches hashing or storage.
type CredentialValidator struct {
	validate        *validator.Validate
	emailRule       string
	passwordMin     int
	passwordMaxByte int
}

// NewCredentialValidator builds a validator from the auth configuration.
func NewCredentialValidator(cfg config.AuthConfig) *CredentialValidator {
	return &CredentialValidator{
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		emailRule:       fmt.Sprintf("required,max=%d,email", cfg.EmailMaxLength),
		passwordMin:     cfg.PasswordMinLength,
		passwordMaxByte: cfg.PasswordMaxBytes,
	}
}

// ValidateRegistration returns a VALIDATION_FAILED error listing every
// offending field.
func (v *CredentialValidator) ValidateRegistration(email, password string) error {
	details := v.checkEmail(email)

	switch {
	case password == "":
		details["password"] = "is required"
	case !utf8.ValidString(password):
		details["password"] = "must be valid UTF-8"
	case utf8.RuneCountInString(password) < v.passwordMin:
		details["password"] = fmt.Sprintf("must be at least %d characters", v.passwordMin)
	case len(password) > v.passwordMaxByte:
		details["password"] = fmt.Sprintf("must be at most %d bytes", v.passwordMaxByte)
	}

	return validationResult(details)
}

// ValidateLogin only checks presence and email shape. Password length rules
// are not applied so that a short wrong password still reports INVALID_CREDENTIAL.
func (v *CredentialValidator) ValidateLogin(email, password string) error {
	details := v.checkEmail(email)
	if password == "" {
		details["password"] = "is required"
	}
	return validationResult(details)
}

// ExceedsMaxBytes reports whether a password is longer than any stored one can be.
func (v *CredentialValidator) ExceedsMaxBytes(password string) bool {
	return len(password) > v.passwordMaxByte
}

func (v *CredentialValidator) checkEmail(email string) map[string]any {
	details := map[string]any{}
	if email != strings.TrimSpace(email) {
		details["email"] = "must not have leading or trailing whitespace"
	} else if err := v.validate.Var(email, v.emailRule); err != nil {
		details["email"] = describeEmailError(err)
	}
	return details
}

func validationResult(details map[string]any) error {
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid credentials payload", details)
	}
	return nil
}

func describeEmailError(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return "is invalid"
	}
	switch fieldErrs[0].Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErrs[0].Param())
	default:
		return "must be a valid email address"
	}
}
