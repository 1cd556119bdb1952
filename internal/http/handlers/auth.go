package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/token"
	"github.com/swifttiger/backend/internal/utils"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	SessionID             string      `json:"session_id"`
	AccessToken           string      `json:"access_token"`
	AccessTokenExpiresAt  time.Time   `json:"access_token_expires_at"`
	RefreshToken          string      `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time   `json:"refresh_token_expires_at"`
	User                  models.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshResponse struct {
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// @Summary Register
// @Description Create a technician account. Privileged roles are granted through user management.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "registration"
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.Logger.Error().Err(err).Msg("password hash failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         models.RoleTechnician,
		IsActive:     true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(c, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered", nil)
			return
		}
		h.storeError(c, err, "user")
		return
	}

	h.Auditor.Record(c.Request.Context(), user.ID, service.ActionRegister, "user", idString(user.ID), nil, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusCreated, user)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} map[string]any
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// same response as a wrong password so the endpoint does
			// not confirm which emails exist
			writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}
		h.storeError(c, err, "user")
		return
	}
	if err := utils.CheckPassword(req.Password, user.PasswordHash); err != nil {
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}
	if !user.IsActive {
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	accessToken, accessPayload, err := h.TokenMaker.CreateToken(user.ID, user.Role, h.Config.AccessTokenTTL, token.TokenTypeAccessToken)
	if err != nil {
		h.Logger.Error().Err(err).Msg("access token mint failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}
	refreshToken, refreshPayload, err := h.TokenMaker.CreateToken(user.ID, user.Role, h.Config.RefreshTokenTTL, token.TokenTypeRefreshToken)
	if err != nil {
		h.Logger.Error().Err(err).Msg("refresh token mint failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}

	sess := models.Session{
		ID:           refreshPayload.ID.String(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    c.Request.UserAgent(),
		ClientIP:     c.ClientIP(),
		ExpiresAt:    refreshPayload.ExpiredAt,
	}
	if err := h.Store.CreateSession(ctx, sess); err != nil {
		h.storeError(c, err, "session")
		return
	}

	if err := h.Store.TouchLastLogin(ctx, user.ID); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", user.ID).Msg("last login update failed")
	}

	h.Auditor.Record(ctx, user.ID, service.ActionLogin, "user", idString(user.ID), nil, c.ClientIP(), c.Request.UserAgent())
	c.JSON(http.StatusOK, LoginResponse{
		SessionID:             sess.ID,
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessPayload.ExpiredAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshPayload.ExpiredAt,
		User:                  user,
	})
}

// Refresh exchanges a live refresh token for a new access token. The
// backing session must exist, belong to the same user, and be neither
// revoked nor expired.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	refreshPayload, err := h.TokenMaker.VerifyToken(req.RefreshToken, token.TokenTypeRefreshToken)
	if err != nil {
		code := "UNAUTHORIZED"
		if errors.Is(err, token.ErrExpiredToken) {
			code = "TOKEN_EXPIRED"
		}
		writeError(c, http.StatusUnauthorized, code, err.Error(), nil)
		return
	}

	ctx := c.Request.Context()
	sess, err := h.Store.GetSessionByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session not found", nil)
			return
		}
		h.storeError(c, err, "session")
		return
	}
	if sess.IsRevoked {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session is revoked", nil)
		return
	}
	if sess.UserID != refreshPayload.UserID {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session does not belong to this user", nil)
		return
	}
	if time.Now().After(sess.ExpiresAt) {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Session has expired", nil)
		return
	}

	accessToken, accessPayload, err := h.TokenMaker.CreateToken(refreshPayload.UserID, refreshPayload.Role, h.Config.AccessTokenTTL, token.TokenTypeAccessToken)
	if err != nil {
		h.Logger.Error().Err(err).Msg("access token mint failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessPayload.ExpiredAt,
	})
}

// Logout revokes the session behind a refresh token. The access token
// stays usable until it expires; only the refresh path closes.
func (h *Handler) Logout(c *gin.Context) {
	payload := middleware.AuthPayload(c)

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	refreshPayload, err := h.TokenMaker.VerifyToken(req.RefreshToken, token.TokenTypeRefreshToken)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
		return
	}
	if refreshPayload.UserID != payload.UserID {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Session does not belong to this user", nil)
		return
	}

	err = h.Store.RevokeSession(c.Request.Context(), refreshPayload.ID.String())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		h.storeError(c, err, "session")
		return
	}
	// a missing row means the session was already revoked and purged;
	// logging out twice is fine

	h.audit(c, service.ActionLogout, "session", refreshPayload.ID.String(), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	payload := middleware.AuthPayload(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUser(ctx, payload.UserID)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	if err := utils.CheckPassword(req.CurrentPassword, user.PasswordHash); err != nil {
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", nil)
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		h.Logger.Error().Err(err).Msg("password hash failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}
	if err := h.Store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		h.storeError(c, err, "user")
		return
	}
	// every outstanding refresh token dies with the old password
	if err := h.Store.RevokeUserSessions(ctx, user.ID); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", user.ID).Msg("session revocation failed")
	}

	h.audit(c, service.ActionPasswordChange, "user", idString(user.ID), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *Handler) Profile(c *gin.Context) {
	payload := middleware.AuthPayload(c)
	user, err := h.Store.GetUser(c.Request.Context(), payload.UserID)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile lets users edit their own name and email. Role, skills
// and the active flag stay admin-only.
func (h *Handler) UpdateProfile(c *gin.Context) {
	payload := middleware.AuthPayload(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUser(ctx, payload.UserID)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	user.Name = strings.TrimSpace(req.Name)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))

	updated, err := h.Store.UpdateUser(ctx, user)
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(c, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered", nil)
			return
		}
		h.storeError(c, err, "user")
		return
	}

	h.audit(c, service.ActionUpdate, "user", idString(updated.ID), gin.H{"profile": true})
	c.JSON(http.StatusOK, updated)
}
