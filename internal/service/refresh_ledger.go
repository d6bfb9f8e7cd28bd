package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nordrail/storefront-api/internal/models"
)

// Sentinel outcomes for rotation. Already-rotated and explicitly
// logged-out records are both reported as revoked; callers must reject the
// two cases identically.
var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshRevoked  = errors.New("refresh token revoked")
	ErrRefreshExpired  = errors.New("refresh token expired")
)

type refreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, newToken *models.RefreshToken) (bool, error)
	Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) error
}

// RefreshLedger owns the refresh-token lifecycle. All mutation of ledger
// rows goes through it; expiry is checked lazily at use time and rows are
// never swept on the request path.
type RefreshLedger struct {
	store  refreshTokenStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRefreshLedger constructs a RefreshLedger.
func NewRefreshLedger(store refreshTokenStore, ttl time.Duration, logger *zap.Logger) *RefreshLedger {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshLedger{store: store, ttl: ttl, logger: logger}
}

// TTL returns the configured refresh-token lifetime.
func (l *RefreshLedger) TTL() time.Duration {
	return l.ttl
}

// Issue mints a fresh opaque secret for the owner and persists its digest.
// The plaintext secret is returned only after the record is durably stored
// and is never logged or persisted anywhere.
func (l *RefreshLedger) Issue(ctx context.Context, ownerID string) (string, *models.RefreshToken, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := time.Now().UTC()
	record := &models.RefreshToken{
		AccountID: ownerID,
		TokenHash: HashRefreshSecret(secret),
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
		Revoked:   false,
	}

	if err := l.store.Create(ctx, record); err != nil {
		return "", nil, err
	}

	return secret, record, nil
}

// Rotate exchanges a live secret for its successor. The old record's
// revocation and the new record's creation are committed together by the
// store, so a concurrent reader never observes one without the other.
func (l *RefreshLedger) Rotate(ctx context.Context, secret string) (string, *models.RefreshToken, error) {
	oldHash := HashRefreshSecret(secret)

	record, err := l.store.FindByHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrRefreshNotFound
		}
		return "", nil, err
	}

	if record.Revoked {
		return "", nil, ErrRefreshRevoked
	}
	if record.Expired(time.Now().UTC()) {
		return "", nil, ErrRefreshExpired
	}

	newSecret, err := generateRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := time.Now().UTC()
	successor := &models.RefreshToken{
		AccountID: record.AccountID,
		TokenHash: HashRefreshSecret(newSecret),
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
		Revoked:   false,
	}

	rotated, err := l.store.Rotate(ctx, oldHash, successor)
	if err != nil {
		return "", nil, err
	}
	if !rotated {
		// Lost the compare-and-set to a concurrent rotation or logout.
		return "", nil, ErrRefreshRevoked
	}

	return newSecret, successor, nil
}

// Revoke invalidates the record matching the secret. Unknown and
// already-revoked secrets succeed: logout is unconditional.
func (l *RefreshLedger) Revoke(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}
	return l.store.Revoke(ctx, HashRefreshSecret(secret), time.Now().UTC())
}

// HashRefreshSecret computes the storable digest of a refresh secret. The
// plaintext is never written to the ledger; a read-only dump of the store
// yields nothing replayable.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func generateRefreshSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
