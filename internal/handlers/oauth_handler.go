package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/database/models"
	"github.com/jmcgarr/nimbus/internal/logger"
	"github.com/jmcgarr/nimbus/internal/metrics"
)

// OAuthHandler serves Google sign-in. The frontend drives the redirect
// dance and hands the authorization code back to this API, which
// exchanges it, verifies the identity token and issues a bearer token
// of its own.
type OAuthHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	tokens   *auth.TokenIssuer
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOAuthHandler discovers the provider's endpoints. Discovery needs
// the network, so it retries a few times before giving up; with no
// client ID configured the handler stays disabled instead of failing.
func NewOAuthHandler(ctx context.Context, db *gorm.DB, cfg *config.Config, tokens *auth.TokenIssuer) (*OAuthHandler, error) {
	h := &OAuthHandler{db: db, cfg: cfg, tokens: tokens}
	if cfg.OAuthClientID == "" {
		logger.Warn("oauth client id not configured, Google sign-in disabled")
		return h, nil
	}

	var provider *oidc.Provider
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		provider, err = oidc.NewProvider(ctx, cfg.OAuthIssuer)
		if err == nil {
			break
		}
		logger.Warn("oidc discovery failed", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		return nil, err
	}

	h.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OAuthClientID})
	h.oauth = &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.FrontendURL + "/auth/callback",
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return h, nil
}

func (h *OAuthHandler) enabled() bool {
	return h.oauth != nil
}

// GoogleURL returns the provider consent URL the frontend should
// redirect the user to.
func (h *OAuthHandler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	state := uuid.New().String()
	writeJSON(w, http.StatusOK, map[string]any{
		"url":   h.oauth.AuthCodeURL(state),
		"state": state,
	})
}

type oauthCallbackRequest struct {
	Code string `json:"code"`
}

// idTokenClaims is the subset of the identity token this service uses.
type idTokenClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleCallback exchanges the authorization code, verifies the
// identity token and signs the user in, creating an account on first
// contact.
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	var req oauthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code is required")
		return
	}

	token, err := h.oauth.Exchange(r.Context(), req.Code)
	if err != nil {
		metrics.RecordOAuthLogin(false)
		logger.Warn("oauth code exchange failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Failed to authenticate with Google")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		metrics.RecordOAuthLogin(false)
		writeError(w, http.StatusUnauthorized, "Failed to authenticate with Google")
		return
	}

	idToken, err := h.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		metrics.RecordOAuthLogin(false)
		logger.Warn("id token verification failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Failed to authenticate with Google")
		return
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		metrics.RecordOAuthLogin(false)
		writeError(w, http.StatusUnauthorized, "Failed to authenticate with Google")
		return
	}

	user, err := h.findOrCreateUser(r.Context(), idToken.Subject, claims)
	if err != nil {
		metrics.RecordOAuthLogin(false)
		logger.Error("oauth user upsert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	bearer, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	metrics.RecordOAuthLogin(true)
	logger.Info("user logged in via google", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   bearer,
		"user":    publicUser(user),
	})
}

// findOrCreateUser matches on email so the same person can use both
// password and Google sign-in against one account.
func (h *OAuthHandler) findOrCreateUser(ctx context.Context, subject string, claims idTokenClaims) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(ctx).Where("email = ?", claims.Email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	name := claims.Name
	if name == "" {
		name = "No Name"
	}
	user = models.User{
		ID:        subject,
		Email:     claims.Email,
		UserName:  name,
		AvatarURL: claims.Picture,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
