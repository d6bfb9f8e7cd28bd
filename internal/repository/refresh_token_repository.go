package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nordrail/storefront-api/internal/models"
)

// RefreshTokenRepository persists the refresh-token ledger. Rows are never
// deleted on the request path; revocation is a monotonic flag flip.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository.
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create persists a refresh-token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, account_id, token_hash, issued_at, expires_at, revoked, revoked_at, replaced_by, created_at) VALUES (:id, :account_id, :token_hash, :issued_at, :expires_at, :revoked, :revoked_at, :replaced_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindByHash returns a refresh-token record by secret digest.
func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const query = `SELECT id, account_id, token_hash, issued_at, expires_at, revoked, revoked_at, replaced_by, created_at FROM refresh_tokens WHERE token_hash = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, tokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// Rotate revokes the old record and inserts its successor inside a single
// transaction. The revocation is a compare-and-set on revoked = FALSE, so
// two concurrent rotations of the same secret commit exactly one winner;
// the loser observes rotated = false and no successor row is written.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, newToken *models.RefreshToken) (bool, error) {
	if newToken.ID == "" {
		newToken.ID = uuid.NewString()
	}
	if newToken.CreatedAt.IsZero() {
		newToken.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rotate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const revokeQuery = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, replaced_by = $3 WHERE token_hash = $1 AND revoked = FALSE`
	res, err := tx.ExecContext(ctx, revokeQuery, oldHash, time.Now().UTC(), newToken.TokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke rotated token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	const insertQuery = `INSERT INTO refresh_tokens (id, account_id, token_hash, issued_at, expires_at, revoked, revoked_at, replaced_by, created_at) VALUES (:id, :account_id, :token_hash, :issued_at, :expires_at, :revoked, :revoked_at, :replaced_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, newToken); err != nil {
		return false, fmt.Errorf("create rotated token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rotate tx: %w", err)
	}
	return true, nil
}

// Revoke marks the record matching the digest as revoked. Revoking an
// unknown or already-revoked digest affects zero rows and is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForAccount revokes every live session for an account.
func (r *RefreshTokenRepository) RevokeAllForAccount(ctx context.Context, accountID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE account_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, accountID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke account refresh tokens: %w", err)
	}
	return nil
}
