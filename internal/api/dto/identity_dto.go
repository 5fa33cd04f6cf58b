package dto

import "time"

// CredentialsRequest is the body of POST /register and POST /login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse is returned on successful registration.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse standard response for the login endpoint.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityResponse describes the caller of GET /me.
type IdentityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
