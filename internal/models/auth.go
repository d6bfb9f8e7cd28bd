package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest holds the payload for password registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FederatedSignInRequest carries the third-party identity token to be
// verified by the external collaborator.
type FederatedSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// TokenPair bundles the minted access token with the refresh secret. The
// refresh secret is delivered via cookie and stripped from JSON output.
type TokenPair struct {
	AccessToken   string    `json:"access_token"`
	ExpiresIn     int64     `json:"expires_in"`
	IssuedAt      time.Time `json:"issued_at"`
	RefreshSecret string    `json:"-"`
	RefreshExpiry time.Time `json:"-"`
}

// AuthResponse returns the issued tokens and account info.
type AuthResponse struct {
	TokenPair
	Account AccountInfo `json:"account"`
}

// AccountInfo describes the authenticated account in responses.
type AccountInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Info converts an Account to its response shape.
func (a *Account) Info() AccountInfo {
	return AccountInfo{ID: a.ID, Email: a.Email, Name: a.Name}
}

// AccessClaims is the JWT payload for access tokens. Subject identity is
// the only claim carried beyond the registered set.
type AccessClaims struct {
	jwt.RegisteredClaims
}
