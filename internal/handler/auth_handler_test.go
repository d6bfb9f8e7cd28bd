package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordrail/storefront-api/internal/models"
	"github.com/nordrail/storefront-api/internal/service"
	"github.com/nordrail/storefront-api/pkg/config"
)

type memoryAccounts struct {
	mu       sync.Mutex
	byID     map[string]*models.Account
	nextUUID int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[string]*models.Account{}}
}

func (m *memoryAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (m *memoryAccounts) FindByFederatedID(ctx context.Context, subjectID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.FederatedID != nil && *a.FederatedID == subjectID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryAccounts) Create(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.byID[account.ID] = &copied
	return nil
}

func (m *memoryAccounts) AttachFederatedID(ctx context.Context, accountID, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[accountID]; ok {
		a.FederatedID = &subjectID
	}
	return nil
}

type memoryTokens struct {
	mu     sync.Mutex
	byHash map[string]*models.RefreshToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byHash: map[string]*models.RefreshToken{}}
}

func (m *memoryTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	m.byHash[token.TokenHash] = &copied
	return nil
}

func (m *memoryTokens) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (m *memoryTokens) Rotate(ctx context.Context, oldHash string, newToken *models.RefreshToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byHash[oldHash]
	if !ok || old.Revoked {
		return false, nil
	}
	now := time.Now().UTC()
	old.Revoked = true
	old.RevokedAt = &now
	old.ReplacedBy = &newToken.TokenHash
	copied := *newToken
	m.byHash[newToken.TokenHash] = &copied
	return true, nil
}

func (m *memoryTokens) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byHash[tokenHash]; ok && !t.Revoked {
		t.Revoked = true
		t.RevokedAt = &revokedAt
	}
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryAccounts) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	accounts := newMemoryAccounts()
	tokens := newMemoryTokens()

	signer := service.NewTokenSigner("test-secret", 15*time.Minute)
	ledger := service.NewRefreshLedger(tokens, 7*24*time.Hour, nil)
	linker := service.NewIdentityLinker(accounts, nil)
	authSvc := service.NewAuthService(accounts, signer, ledger, linker, nil, nil, nil)

	cookie := config.CookieConfig{Name: "refresh_token", SameSite: "strict", Secure: false}
	h := NewAuthHandler(authSvc, nil, cookie, "/api/v1")

	router := gin.New()
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}
	return router, accounts
}

func postJSON(router *gin.Engine, path string, payload interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	cookie := refreshCookie(t, w)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/api/v1/auth/refresh", cookie.Path)
	assert.Greater(t, cookie.MaxAge, 0)

	// The refresh secret must never leak into the response body.
	assert.NotContains(t, w.Body.String(), cookie.Value)
	assert.Contains(t, w.Body.String(), "access_token")
}

func TestRegisterInvalidPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", gin.H{"email": "not-an-email", "password": "x", "name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(router, "/api/v1/auth/login", models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	unknown := postJSON(router, "/api/v1/auth/login", models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	// Unknown email and wrong password are indistinguishable.
	assert.JSONEq(t, w.Body.String(), unknown.Body.String())
}

func TestRefreshRotatesCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	first := refreshCookie(t, w)

	w = postJSON(router, "/api/v1/auth/refresh", nil, first)
	require.Equal(t, http.StatusOK, w.Code)
	second := refreshCookie(t, w)
	assert.NotEqual(t, first.Value, second.Value)

	// Replaying the consumed cookie is rejected.
	w = postJSON(router, "/api/v1/auth/refresh", nil, first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The rotated cookie keeps working.
	w = postJSON(router, "/api/v1/auth/refresh", nil, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshBodyFallback(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := refreshCookie(t, w)

	w = postJSON(router, "/api/v1/auth/refresh", gin.H{"refresh_token": cookie.Value})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshWithoutSecret(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(router, "/api/v1/auth/register", models.RegisterRequest{
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := refreshCookie(t, w)

	w = postJSON(router, "/api/v1/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := refreshCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	// The revoked secret no longer refreshes.
	w = postJSON(router, "/api/v1/auth/refresh", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out again with the same dead cookie still succeeds.
	w = postJSON(router, "/api/v1/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "true"))
}
