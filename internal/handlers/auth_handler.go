package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/blob"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/database/models"
	"github.com/jmcgarr/nimbus/internal/logger"
	"github.com/jmcgarr/nimbus/internal/metrics"
	"github.com/jmcgarr/nimbus/internal/vfs"
)

// AuthHandler serves registration, login and profile management.
type AuthHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	tokens *auth.TokenIssuer
	blobs  blob.Store
	paths  *vfs.Resolver
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, tokens *auth.TokenIssuer, blobs blob.Store, paths *vfs.Resolver) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, tokens: tokens, blobs: blobs, paths: paths}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public view of a user row.
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	UserName  string `json:"user_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func publicUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, UserName: u.UserName, AvatarURL: u.AvatarURL}
}

// Register creates a new account from an email and password.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var existing models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		metrics.RecordRegistration(false)
		writeError(w, http.StatusBadRequest, "This email is already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("registration lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	hash, err := auth.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		logger.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		metrics.RecordRegistration(false)
		logger.Error("user creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	metrics.RecordRegistration(true)
	logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    publicUser(&user),
	})
}

// Login verifies credentials and issues a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		metrics.RecordLogin(false)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		logger.Error("token issue failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	metrics.RecordLogin(true)
	logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user":    publicUser(&user),
	})
}

// Logout acknowledges the client discarding its token. Tokens are
// stateless, so there is nothing to revoke server side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User logged out successfully",
	})
}

// CurrentUser returns the profile of the authenticated caller.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	user, err := h.lookupUser(r, claims)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("user lookup failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User fetched successfully",
		"user":    publicUser(user),
	})
}

// lookupUser finds the caller's row by ID, falling back to the token's
// email claim for accounts created before IDs were stable.
func (h *AuthHandler) lookupUser(r *http.Request, claims *auth.Claims) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(r.Context()).Where("id = ?", claims.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && claims.Email != "" {
		err = h.db.WithContext(r.Context()).Where("email = ?", claims.Email).First(&user).Error
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserDetails echoes the verified token claims back to the caller.
// Useful for frontends that need a cheap "who am I" check without a
// database round trip.
func (h *AuthHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User details fetched successfully",
		"user": map[string]string{
			"id":    claims.UserID,
			"email": claims.Email,
		},
	})
}

type updateProfileRequest struct {
	UserName string `json:"user_name"`
}

// UpdateProfile changes the caller's display name.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserName) == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	err := h.db.WithContext(r.Context()).
		Model(&models.User{}).
		Where("id = ?", claims.UserID).
		Update("user_name", strings.TrimSpace(req.UserName)).Error
	if err != nil {
		logger.Error("profile update failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
	})
}

// UploadAvatar stores a new avatar image and records its public URL.
// Avatars overwrite in place, unlike regular uploads.
func (h *AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	path := h.paths.AvatarPath(claims.UserID, header.Filename)
	url, err := h.blobs.Put(r.Context(), path, file, blob.PutOptions{
		ContentType: header.Header.Get("Content-Type"),
		Overwrite:   true,
	})
	if err != nil {
		logger.Error("avatar upload failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}

	err = h.db.WithContext(r.Context()).
		Model(&models.User{}).
		Where("id = ?", claims.UserID).
		Update("avatar_url", url).Error
	if err != nil {
		logger.Error("avatar url update failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Avatar uploaded successfully",
		"avatar_url": url,
	})
}
