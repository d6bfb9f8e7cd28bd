package models

import "time"

// RefreshToken represents one persisted refresh-token session. Only the
// SHA-256 digest of the opaque secret is stored; the plaintext leaves the
// process exactly once, inside the issuance response cookie.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	AccountID string     `db:"account_id" json:"account_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	IssuedAt  time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	// ReplacedBy carries the digest of the successor record created during
	// rotation. Set implies Revoked.
	ReplacedBy *string   `db:"replaced_by" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the record is past its absolute expiry.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
