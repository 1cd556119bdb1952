package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/utils"
)

type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=100"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Role     string   `json:"role" validate:"required"`
	Skills   []string `json:"skills" validate:"omitempty,dive,min=1,max=60"`
	IsActive *bool    `json:"is_active"`
}

type UpdateUserRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=100"`
	Email    string   `json:"email" validate:"required,email"`
	Role     string   `json:"role" validate:"required"`
	Skills   []string `json:"skills" validate:"omitempty,dive,min=1,max=60"`
	IsActive *bool    `json:"is_active"`
}

func (h *Handler) UsersList(c *gin.Context) {
	limit, offset := parsePagination(c)

	role := strings.TrimSpace(c.Query("role"))
	if role != "" && !models.ValidRole(role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid role filter", nil)
		return
	}

	var active *bool
	switch c.Query("active") {
	case "":
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	default:
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "active must be true or false", nil)
		return
	}

	items, total, err := h.Store.ListUsers(c.Request.Context(), role, active, limit, offset)
	if err != nil {
		h.storeError(c, err, "users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) UserCreate(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !models.ValidRole(req.Role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid role", nil)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.Logger.Error().Err(err).Msg("password hash failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := h.Store.CreateUser(c.Request.Context(), models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         req.Role,
		Skills:       normalizeSkills(req.Skills),
		IsActive:     active,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(c, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered", nil)
			return
		}
		h.storeError(c, err, "user")
		return
	}

	h.audit(c, service.ActionCreate, "user", idString(user.ID), gin.H{"role": user.Role})
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) UserGet(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.Store.GetUser(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UserUpdate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	payload := middleware.AuthPayload(c)

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !models.ValidRole(req.Role) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid role", nil)
		return
	}
	if id == payload.UserID && req.IsActive != nil && !*req.IsActive {
		writeError(c, http.StatusBadRequest, "SELF_DEACTIVATION", "You cannot deactivate your own account", nil)
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.GetUser(ctx, id)
	if err != nil {
		h.storeError(c, err, "user")
		return
	}
	user.Name = strings.TrimSpace(req.Name)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user.Role = req.Role
	user.Skills = normalizeSkills(req.Skills)
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	updated, err := h.Store.UpdateUser(ctx, user)
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(c, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered", nil)
			return
		}
		h.storeError(c, err, "user")
		return
	}
	if !updated.IsActive {
		// a deactivated user must not be able to refresh back in
		if err := h.Store.RevokeUserSessions(ctx, updated.ID); err != nil {
			h.Logger.Warn().Err(err).Int64("user_id", updated.ID).Msg("session revocation failed")
		}
	}

	h.audit(c, service.ActionUpdate, "user", idString(updated.ID), gin.H{"role": updated.Role, "is_active": updated.IsActive})
	c.JSON(http.StatusOK, updated)
}

// UserDelete deactivates the account. Users are never hard-deleted:
// jobs, routes and the action log keep referencing them.
func (h *Handler) UserDelete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	payload := middleware.AuthPayload(c)
	if id == payload.UserID {
		writeError(c, http.StatusBadRequest, "SELF_DEACTIVATION", "You cannot deactivate your own account", nil)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.DeactivateUser(ctx, id); err != nil {
		h.storeError(c, err, "user")
		return
	}
	if err := h.Store.RevokeUserSessions(ctx, id); err != nil {
		h.Logger.Warn().Err(err).Int64("user_id", id).Msg("session revocation failed")
	}

	h.audit(c, service.ActionDelete, "user", idString(id), nil)
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
}

type technicianWithLocation struct {
	models.User
	Online   bool                     `json:"online"`
	Location *realtime.LatestLocation `json:"location,omitempty"`
}

// TechniciansList returns active technicians with their last-known
// locations and live connection state, for the dispatch map.
func (h *Handler) TechniciansList(c *gin.Context) {
	ctx := c.Request.Context()
	techs, err := h.Store.ListTechnicians(ctx)
	if err != nil {
		h.storeError(c, err, "technicians")
		return
	}

	locations := map[int64]realtime.LatestLocation{}
	if merged, err := h.mergedLocations(ctx); err != nil {
		h.Logger.Warn().Err(err).Msg("technician locations unavailable")
	} else {
		for _, loc := range merged {
			locations[loc.TechnicianID] = realtime.LatestLocation{
				TechnicianID: loc.TechnicianID,
				Lat:          loc.Latitude,
				Lng:          loc.Longitude,
				AccuracyM:    loc.AccuracyM,
				RecordedAt:   loc.RecordedAt,
			}
		}
	}

	items := make([]technicianWithLocation, 0, len(techs))
	for _, t := range techs {
		item := technicianWithLocation{User: t, Online: h.Hub.IsTechnicianOnline(t.ID)}
		if loc, ok := locations[t.ID]; ok {
			l := loc
			item.Location = &l
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func normalizeSkills(skills []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
