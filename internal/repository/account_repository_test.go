package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordrail/storefront-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	hash := "digest"
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "federated_id", "created_at", "updated_at"}).
		AddRow("1", "alice@example.com", hash, "Alice", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, name, federated_id, created_at, updated_at FROM accounts WHERE email = $1 LIMIT 1")).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.True(t, account.HasPassword())
	assert.Nil(t, account.FederatedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO accounts").WillReturnError(&pq.Error{Code: "23505"})

	hash := "digest"
	account, err := models.NewAccount("alice@example.com", "Alice", &hash, nil)
	require.NoError(t, err)

	err = repo.Create(context.Background(), account)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(1, 1))

	subject := "ext-1"
	account, err := models.NewAccount("bob@example.com", "Bob", nil, &subject)
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), account))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachFederatedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET federated_id = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("acct-1", "ext-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AttachFederatedID(context.Background(), "acct-1", "ext-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.False(t, IsUniqueViolation(nil))
}
