package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/realtime"
)

type LocationPingRequest struct {
	Lat       float64 `json:"lat" validate:"required,latitude"`
	Lng       float64 `json:"lng" validate:"required,longitude"`
	AccuracyM float64 `json:"accuracy_m" validate:"omitempty,gte=0"`
}

// LocationPing is the REST fallback for technicians whose websocket is
// down. The websocket path lands in recordLocation too.
func (h *Handler) LocationPing(c *gin.Context) {
	payload := middleware.AuthPayload(c)

	var req LocationPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	loc, err := h.Store.UpsertTechnicianLocation(c.Request.Context(), models.TechnicianLocation{
		TechnicianID: payload.UserID,
		Latitude:     req.Lat,
		Longitude:    req.Lng,
		AccuracyM:    req.AccuracyM,
	})
	if err != nil {
		h.storeError(c, err, "location")
		return
	}

	h.cacheAndPublishLocation(loc)
	c.JSON(http.StatusOK, loc)
}

// @Summary Last-known technician locations
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /api/locations [get]
func (h *Handler) LocationsList(c *gin.Context) {
	items, err := h.mergedLocations(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "locations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// recordLocation is the websocket ping sink: it persists the position
// and fans it out. Called from a client read pump, so failures are
// logged rather than surfaced.
func (h *Handler) recordLocation(userID int64, lat, lng, accuracyM float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loc, err := h.Store.UpsertTechnicianLocation(ctx, models.TechnicianLocation{
		TechnicianID: userID,
		Latitude:     lat,
		Longitude:    lng,
		AccuracyM:    accuracyM,
	})
	if err != nil {
		h.Logger.Warn().Err(err).Int64("technician_id", userID).Msg("location upsert failed")
		return
	}
	h.cacheAndPublishLocation(loc)
}

func (h *Handler) cacheAndPublishLocation(loc models.TechnicianLocation) {
	h.Locations.Upsert(realtime.LatestLocation{
		TechnicianID: loc.TechnicianID,
		Lat:          loc.Latitude,
		Lng:          loc.Longitude,
		AccuracyM:    loc.AccuracyM,
		RecordedAt:   loc.RecordedAt,
	})
	metrics.LocationPings.Inc()
	h.publish(broker.TopicLocations, realtime.LocationEvent(loc))
}

// mergedLocations overlays the in-memory cache on the persisted
// last-known positions. The cache wins when it has seen a newer ping;
// rows only in the database cover technicians that reported before the
// last restart.
func (h *Handler) mergedLocations(ctx context.Context) ([]models.TechnicianLocation, error) {
	stored, err := h.Store.ListTechnicianLocations(ctx)
	if err != nil {
		return nil, err
	}

	byTech := make(map[int64]models.TechnicianLocation, len(stored))
	for _, loc := range stored {
		byTech[loc.TechnicianID] = loc
	}
	for _, cached := range h.Locations.List() {
		existing, ok := byTech[cached.TechnicianID]
		if ok && !cached.RecordedAt.After(existing.RecordedAt) {
			continue
		}
		merged := models.TechnicianLocation{
			TechnicianID: cached.TechnicianID,
			Latitude:     cached.Lat,
			Longitude:    cached.Lng,
			AccuracyM:    cached.AccuracyM,
			RecordedAt:   cached.RecordedAt,
		}
		if ok {
			merged.ID = existing.ID
			merged.TechnicianName = existing.TechnicianName
		}
		byTech[cached.TechnicianID] = merged
	}

	out := make([]models.TechnicianLocation, 0, len(byTech))
	for _, loc := range byTech {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TechnicianID < out[j].TechnicianID })
	return out, nil
}
