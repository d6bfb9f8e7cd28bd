package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nordrail/storefront-api/internal/federated"
	"github.com/nordrail/storefront-api/internal/models"
	"github.com/nordrail/storefront-api/internal/repository"
)

type linkerAccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByFederatedID(ctx context.Context, subjectID string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	AttachFederatedID(ctx context.Context, accountID, subjectID string) error
}

// IdentityLinker resolves a verified external identity to a local account,
// linking or creating one as needed.
type IdentityLinker struct {
	store  linkerAccountStore
	logger *zap.Logger
}

// NewIdentityLinker constructs an IdentityLinker.
func NewIdentityLinker(store linkerAccountStore, logger *zap.Logger) *IdentityLinker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityLinker{store: store, logger: logger}
}

// Resolve maps a verified identity to an account: subject-id match first,
// then email match with first-time linking, then creation of a fresh
// federated-only account. A creation race against a concurrent sign-in for
// the same identity is settled by the store's uniqueness constraints; the
// loser retries as a lookup instead of failing the request.
func (il *IdentityLinker) Resolve(ctx context.Context, identity *federated.Identity) (*models.Account, error) {
	account, err := il.resolveOnce(ctx, identity)
	if err == nil {
		return account, nil
	}
	if !repository.IsUniqueViolation(err) {
		return nil, err
	}

	il.logger.Debug("federated resolution lost creation race, retrying as lookup",
		zap.String("subject_id", identity.SubjectID))

	return il.resolveOnce(ctx, identity)
}

func (il *IdentityLinker) resolveOnce(ctx context.Context, identity *federated.Identity) (*models.Account, error) {
	account, err := il.store.FindByFederatedID(ctx, identity.SubjectID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	account, err = il.store.FindByEmail(ctx, identity.Email)
	if err == nil {
		if err := il.store.AttachFederatedID(ctx, account.ID, identity.SubjectID); err != nil {
			return nil, err
		}
		subjectID := identity.SubjectID
		account.FederatedID = &subjectID
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	subjectID := identity.SubjectID
	account, err = models.NewAccount(identity.Email, identity.DisplayName, nil, &subjectID)
	if err != nil {
		return nil, fmt.Errorf("construct federated account: %w", err)
	}
	if err := il.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
