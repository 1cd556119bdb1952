package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/config"
	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/geocode"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/token"
	"github.com/swifttiger/backend/internal/upload"
	"github.com/swifttiger/backend/internal/worker"
)

type Handler struct {
	Store      *db.Store
	Config     config.Config
	TokenMaker token.Maker
	Validator  *validator.Validate
	Logger     zerolog.Logger

	Auditor   *service.Auditor
	Planner   *service.PlannerService
	Events    broker.EventBroker
	Hub       *realtime.Hub
	Locations *realtime.LocationCache
	Uploader  *upload.FileUploader
	Geocoder  geocode.Geocoder

	// Distributor is nil when Redis is not configured; background work
	// then runs inline, best-effort.
	Distributor worker.TaskDistributor
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports whether the API can actually serve traffic.
func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// @Summary Maps client configuration
// @Description API key the browser needs for the map widgets
// @Tags misc
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /api/maps-config [get]
func (h *Handler) MapsConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"maps_api_key": h.Config.GoogleMapsAPIKey})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	body := gin.H{
		"success": false,
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, body)
}

// storeError maps store failures onto the error envelope. Driver
// details never reach the client; they are logged with the request id.
func (h *Handler) storeError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(c, http.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
	case db.IsForeignKeyViolation(err):
		writeError(c, http.StatusBadRequest, "INVALID_REFERENCE", "A referenced resource does not exist", nil)
	case db.IsUniqueViolation(err):
		writeError(c, http.StatusConflict, "ALREADY_EXISTS", resource+" already exists", nil)
	default:
		h.Logger.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDHeader)).
			Str("resource", resource).
			Msg("store call failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. The
// bool is false only when the parameter is present and malformed.
func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be YYYY-MM-DD", nil)
		return nil, false
	}
	return &d, true
}

func parseIDQuery(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+name+" parameter", nil)
		return nil, false
	}
	return &id, true
}

func (h *Handler) publish(topic string, evt broker.Event) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(topic, evt)
}

// audit records one action log entry attributed to the authenticated
// caller.
func (h *Handler) audit(c *gin.Context, action, resource, resourceID string, details any) {
	var userID int64
	if payload := middleware.AuthPayload(c); payload != nil {
		userID = payload.UserID
	}
	h.Auditor.Record(c.Request.Context(), userID, action, resource, resourceID, details, c.ClientIP(), c.Request.UserAgent())
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
