package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nordrail/storefront-api/internal/models"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
)

// TokenSigner mints and verifies stateless access tokens. The signing key
// is process-wide configuration loaded once at startup; validity of a token
// is decided entirely by signature and expiry, with no server-side record.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner constructs a TokenSigner.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured access-token lifetime.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Issue produces a signed access token for the subject.
func (s *TokenSigner) Issue(subjectID string) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the subject id. Forged,
// malformed and expired tokens all collapse to the same unauthorized error;
// the underlying cause stays wrapped for server-side logs only.
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "unauthorized")
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}

	return claims.Subject, nil
}
