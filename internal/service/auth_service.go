package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nordrail/storefront-api/internal/federated"
	"github.com/nordrail/storefront-api/internal/models"
	"github.com/nordrail/storefront-api/internal/repository"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
)

// Structurally valid digest compared against when the email is unknown, so
// a failed login costs one bcrypt verification either way.
const decoyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type authAccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
}

// AuthService composes the credential verifier, token signer, refresh
// ledger and identity linker into the account-facing use cases.
type AuthService struct {
	accounts  authAccountStore
	signer    *TokenSigner
	ledger    *RefreshLedger
	linker    *IdentityLinker
	verifier  federated.Verifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(accounts authAccountStore, signer *TokenSigner, ledger *RefreshLedger, linker *IdentityLinker, verifier federated.Verifier, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		accounts:  accounts,
		signer:    signer,
		ledger:    ledger,
		linker:    linker,
		verifier:  verifier,
		validator: validate,
		logger:    logger,
	}
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	account, err := models.NewAccount(req.Email, req.Name, &passwordHash, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to construct account")
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// The lookup above races concurrent registrations; the unique
		// constraint is the arbiter.
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))

	return s.signIn(ctx, account)
}

// Login verifies the password and signs the account in. Unknown email,
// password-less account and wrong password yield one indistinguishable
// rejection.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			VerifyPassword(req.Password, decoyPasswordHash)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if !account.HasPassword() {
		VerifyPassword(req.Password, decoyPasswordHash)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if !VerifyPassword(req.Password, *account.PasswordHash) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	return s.signIn(ctx, account)
}

// Refresh rotates the presented refresh secret and mints a new access
// token. Every ledger rejection collapses to unauthorized; the precise
// cause goes to the log, not the client.
func (s *AuthService) Refresh(ctx context.Context, secret string) (*models.TokenPair, error) {
	if secret == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
	}

	newSecret, record, err := s.ledger.Rotate(ctx, secret)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshNotFound), errors.Is(err, ErrRefreshRevoked), errors.Is(err, ErrRefreshExpired):
			s.logger.Info("refresh rejected", zap.String("reason", err.Error()))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unauthorized")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
		}
	}

	accessToken, _, err := s.signer.Issue(record.AccountID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.TokenPair{
		AccessToken:   accessToken,
		ExpiresIn:     int64(s.signer.TTL().Seconds()),
		IssuedAt:      time.Now().UTC(),
		RefreshSecret: newSecret,
		RefreshExpiry: record.ExpiresAt,
	}, nil
}

// Logout revokes the presented refresh secret. An absent, unknown or
// already-revoked secret still logs out successfully.
func (s *AuthService) Logout(ctx context.Context, secret string) error {
	if err := s.ledger.Revoke(ctx, secret); err != nil {
		// Best effort: the client is logged out either way, but a store
		// failure here leaves a live session behind, so it is worth a log.
		s.logger.Warn("failed to revoke refresh token on logout", zap.Error(err))
	}
	return nil
}

// FederatedSignIn verifies a third-party identity token through the
// external collaborator, resolves it to a local account and signs in.
func (s *AuthService) FederatedSignIn(ctx context.Context, req models.FederatedSignInRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid federated payload")
	}

	if s.verifier == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstreamVerification, "federated sign-in is not configured")
	}

	identity, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		s.logger.Info("federated token rejected", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamVerification.Code, appErrors.ErrUpstreamVerification.Status, "identity token could not be verified")
	}

	account, err := s.linker.Resolve(ctx, identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve federated identity")
	}

	return s.signIn(ctx, account)
}

// CurrentAccount loads the live account for an authenticated subject.
func (s *AuthService) CurrentAccount(ctx context.Context, subjectID string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return account, nil
}

func (s *AuthService) signIn(ctx context.Context, account *models.Account) (*models.AuthResponse, error) {
	accessToken, _, err := s.signer.Issue(account.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshSecret, record, err := s.ledger.Issue(ctx, account.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue refresh token")
	}

	return &models.AuthResponse{
		TokenPair: models.TokenPair{
			AccessToken:   accessToken,
			ExpiresIn:     int64(s.signer.TTL().Seconds()),
			IssuedAt:      time.Now().UTC(),
			RefreshSecret: refreshSecret,
			RefreshExpiry: record.ExpiresAt,
		},
		Account: account.Info(),
	}, nil
}
