package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nordrail/storefront-api/internal/models"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Callers use it to turn creation races into lookups.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// AccountRepository provides database access for customer accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByEmail returns an account by email address.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT id, email, password_hash, name, federated_id, created_at, updated_at FROM accounts WHERE email = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT id, email, password_hash, name, federated_id, created_at, updated_at FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// FindByFederatedID returns the account linked to the given external
// subject id.
func (r *AccountRepository) FindByFederatedID(ctx context.Context, subjectID string) (*models.Account, error) {
	const query = `SELECT id, email, password_hash, name, federated_id, created_at, updated_at FROM accounts WHERE federated_id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by federated id: %w", err)
	}
	return &account, nil
}

// Create inserts a new account. Unique violations on email or federated_id
// propagate unwrapped so callers can classify them with IsUniqueViolation.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	const query = `INSERT INTO accounts (id, email, password_hash, name, federated_id, created_at, updated_at) VALUES (:id, :email, :password_hash, :name, :federated_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// AttachFederatedID links an external subject id to an existing account.
func (r *AccountRepository) AttachFederatedID(ctx context.Context, accountID, subjectID string) error {
	const query = `UPDATE accounts SET federated_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, accountID, subjectID, time.Now().UTC()); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("attach federated id: %w", err)
	}
	return nil
}
