package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nordrail/storefront-api/internal/middleware"
	"github.com/nordrail/storefront-api/internal/models"
	"github.com/nordrail/storefront-api/internal/service"
	"github.com/nordrail/storefront-api/pkg/config"
	appErrors "github.com/nordrail/storefront-api/pkg/errors"
	"github.com/nordrail/storefront-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service and owns the
// refresh-cookie contract: http-only, same-site restricted, scoped to the
// refresh endpoint path, expiry matching the ledger TTL. The refresh secret
// never appears in a response body.
type AuthHandler struct {
	service *service.AuthService
	metrics *service.MetricsService
	cookie  config.CookieConfig
	// cookiePath is the refresh endpoint path the cookie is scoped to.
	cookiePath string
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, metrics *service.MetricsService, cookie config.CookieConfig, apiPrefix string) *AuthHandler {
	return &AuthHandler{
		service:    svc,
		metrics:    metrics,
		cookie:     cookie,
		cookiePath: strings.TrimRight(apiPrefix, "/") + "/auth/refresh",
	}
}

// Register godoc
// @Summary Register account
// @Description Create a password account and sign it in
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.countOutcome("register", err)
		response.Error(c, err)
		return
	}

	h.countOutcome("register", nil)
	h.setRefreshCookie(c, res.RefreshSecret, res.RefreshExpiry)
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate account
// @Description Authenticate by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.countOutcome("login", err)
		response.Error(c, err)
		return
	}

	h.countOutcome("login", nil)
	h.setRefreshCookie(c, res.RefreshSecret, res.RefreshExpiry)
	response.JSON(c, http.StatusOK, res)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Exchange the refresh cookie (or body fallback) for a new token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	secret := h.refreshSecretFromRequest(c)

	res, err := h.service.Refresh(c.Request.Context(), secret)
	if err != nil {
		h.countOutcome("refresh", err)
		response.Error(c, err)
		return
	}

	h.countOutcome("refresh", nil)
	h.setRefreshCookie(c, res.RefreshSecret, res.RefreshExpiry)
	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the presented refresh token and clear the cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	secret := h.refreshSecretFromRequest(c)

	// Logout never fails from the caller's perspective.
	_ = h.service.Logout(c.Request.Context(), secret)

	h.countOutcome("logout", nil)
	h.clearRefreshCookie(c)
	response.JSON(c, http.StatusOK, gin.H{"success": true})
}

// Federated godoc
// @Summary Federated sign-in
// @Description Verify a third-party identity token and sign in the linked account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.FederatedSignInRequest true "Identity token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /auth/federated [post]
func (h *AuthHandler) Federated(c *gin.Context) {
	var req models.FederatedSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid federated payload"))
		return
	}

	res, err := h.service.FederatedSignIn(c.Request.Context(), req)
	if err != nil {
		h.countOutcome("federated", err)
		response.Error(c, err)
		return
	}

	h.countOutcome("federated", nil)
	h.setRefreshCookie(c, res.RefreshSecret, res.RefreshExpiry)
	response.JSON(c, http.StatusOK, res)
}

// Me godoc
// @Summary Get current account
// @Description Returns the authenticated account's info
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	subjectID, ok := middleware.Subject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, err := h.service.CurrentAccount(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, account.Info())
}

// refreshSecretFromRequest prefers the cookie and falls back to a body
// field for non-cookie clients.
func (h *AuthHandler) refreshSecretFromRequest(c *gin.Context) string {
	if secret, err := c.Cookie(h.cookie.Name); err == nil && secret != "" {
		return secret
	}

	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&payload); err == nil {
		return payload.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, secret string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(sameSiteMode(h.cookie.SameSite))
	c.SetCookie(h.cookie.Name, secret, maxAge, h.cookiePath, "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(sameSiteMode(h.cookie.SameSite))
	c.SetCookie(h.cookie.Name, "", -1, h.cookiePath, "", h.cookie.Secure, true)
}

func (h *AuthHandler) countOutcome(flow string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	h.metrics.CountAuthOutcome(flow, outcome)
}

func sameSiteMode(raw string) http.SameSite {
	switch strings.ToLower(raw) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
