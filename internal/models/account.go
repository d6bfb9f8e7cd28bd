package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Account represents a storefront customer account stored in the accounts
// table. PasswordHash and FederatedID are both optional, but never both
// absent: an account always keeps at least one usable sign-in method.
type Account struct {
	ID           string  `db:"id" json:"id"`
	Email        string  `db:"email" json:"email"`
	PasswordHash *string `db:"password_hash" json:"-"`
	Name         string  `db:"name" json:"name"`
	// FederatedID is the subject id asserted by the external identity
	// provider; unique when present, at most one per account.
	FederatedID *string   `db:"federated_id" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ErrNoAuthMethod is returned when an account would be created without any
// way to sign in.
var ErrNoAuthMethod = errors.New("account requires a password hash or a federated identity")

// NewAccount is the single constructor for accounts, used by both password
// registration and federated resolution.
func NewAccount(email, name string, passwordHash, federatedID *string) (*Account, error) {
	if passwordHash == nil && federatedID == nil {
		return nil, ErrNoAuthMethod
	}
	now := time.Now().UTC()
	return &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		FederatedID:  federatedID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasPassword reports whether password login is available for the account.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}
