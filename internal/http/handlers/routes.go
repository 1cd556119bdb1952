package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/opt"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/service"
)

type LatLngRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type RouteOptimizeRequest struct {
	JobIDs       []int64        `json:"job_ids" validate:"required,min=1,dive,gt=0"`
	Start        *LatLngRequest `json:"start"`
	Mode         string         `json:"mode"`
	TrafficAware bool           `json:"traffic_aware"`
}

type RoutePlanRequest struct {
	Date          string         `json:"date" validate:"required"`
	TechnicianIDs []int64        `json:"technician_ids" validate:"omitempty,dive,gt=0"`
	Start         *LatLngRequest `json:"start"`
	Mode          string         `json:"mode"`
	TrafficAware  bool           `json:"traffic_aware"`
}

type RouteStopRequest struct {
	JobID         int64   `json:"job_id" validate:"required,gt=0"`
	LegDistanceKm float64 `json:"leg_distance_km" validate:"gte=0"`
	LegMinutes    float64 `json:"leg_minutes" validate:"gte=0"`
}

type RouteSaveRequest struct {
	TechnicianID    int64              `json:"technician_id" validate:"required,gt=0"`
	RouteDate       string             `json:"route_date" validate:"required"`
	Status          string             `json:"status"`
	Mode            string             `json:"mode"`
	Stops           []RouteStopRequest `json:"stops" validate:"required,min=1,dive"`
	TotalDistanceKm float64            `json:"total_distance_km" validate:"gte=0"`
	TotalMinutes    float64            `json:"total_minutes" validate:"gte=0"`
	FuelCost        float64            `json:"fuel_cost" validate:"gte=0"`
	// AssignJobs also reassigns every stop's job to the technician.
	AssignJobs bool `json:"assign_jobs"`
}

// @Summary Optimize a stop order
// @Description Orders the given jobs into a driving route without saving anything
// @Tags routes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RouteOptimizeRequest true "Jobs and options"
// @Success 200 {object} service.OptimizedRoute
// @Failure 400 {object} map[string]any
// @Router /api/routes/optimize [post]
func (h *Handler) RouteOptimize(c *gin.Context) {
	var req RouteOptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	mode, ok := parseMode(c, req.Mode)
	if !ok {
		return
	}

	started := time.Now()
	route, err := h.Planner.OptimizeJobs(c.Request.Context(), req.JobIDs, service.PlanOptions{
		Mode:         mode,
		TrafficAware: req.TrafficAware,
		Start:        startPoint(req.Start),
	})
	if err != nil {
		if errors.Is(err, opt.ErrInsufficientData) {
			writeError(c, http.StatusBadRequest, "INSUFFICIENT_DATA", "Not enough stops to optimize", nil)
			return
		}
		h.storeError(c, err, "route")
		return
	}
	metrics.RoutePlanDuration.Observe(time.Since(started).Seconds())
	metrics.RoutePlans.WithLabelValues(mode, planOutcome(route.Result)).Inc()

	h.audit(c, service.ActionOptimize, "route", "", gin.H{"jobs": len(req.JobIDs), "mode": mode})
	c.JSON(http.StatusOK, route)
}

// @Summary Plan a day of routes
// @Description Assigns the day's unassigned jobs across technicians and orders each route. Nothing is saved; POST /api/routes persists a chosen plan.
// @Tags routes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RoutePlanRequest true "Day and options"
// @Success 200 {object} service.DayPlan
// @Failure 400 {object} map[string]any
// @Router /api/routes/plan [post]
func (h *Handler) RoutePlan(c *gin.Context) {
	var req RoutePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return
	}
	mode, ok := parseMode(c, req.Mode)
	if !ok {
		return
	}

	started := time.Now()
	plan, err := h.Planner.PlanDay(c.Request.Context(), service.PlanOptions{
		Date:          date,
		Mode:          mode,
		TrafficAware:  req.TrafficAware,
		Start:         startPoint(req.Start),
		TechnicianIDs: req.TechnicianIDs,
	})
	if err != nil {
		h.storeError(c, err, "plan")
		return
	}
	metrics.RoutePlanDuration.Observe(time.Since(started).Seconds())
	for _, tp := range plan.Routes {
		metrics.RoutePlans.WithLabelValues(mode, planOutcome(tp.Result)).Inc()
	}

	h.audit(c, service.ActionOptimize, "plan", req.Date, gin.H{
		"routes":     len(plan.Routes),
		"unassigned": len(plan.Unassigned),
		"mode":       mode,
	})
	c.JSON(http.StatusOK, plan)
}

// RouteCreate persists one technician's route for a date. Stops arrive
// in visiting order; positions are assigned from 1 so the stored plan
// is always contiguous. Saving again for the same technician and date
// replaces the previous plan.
func (h *Handler) RouteCreate(c *gin.Context) {
	var req RouteSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.RouteDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "route_date must be YYYY-MM-DD", nil)
		return
	}
	mode, ok := parseMode(c, req.Mode)
	if !ok {
		return
	}
	status := req.Status
	if status == "" {
		status = models.RouteStatusPlanned
	}
	if !models.ValidRouteStatus(status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown route status", nil)
		return
	}
	seen := make(map[int64]bool, len(req.Stops))
	for _, st := range req.Stops {
		if seen[st.JobID] {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Duplicate job in stops", gin.H{"job_id": st.JobID})
			return
		}
		seen[st.JobID] = true
	}
	if !h.validateAssignee(c, req.TechnicianID) {
		return
	}

	route := models.Route{
		TechnicianID:    req.TechnicianID,
		RouteDate:       date,
		Status:          status,
		Mode:            mode,
		TotalDistanceKm: req.TotalDistanceKm,
		TotalMinutes:    req.TotalMinutes,
		FuelCost:        req.FuelCost,
	}
	if payload := middleware.AuthPayload(c); payload != nil {
		route.CreatedBy = payload.UserID
	}
	stops := make([]models.RouteStop, 0, len(req.Stops))
	for i, st := range req.Stops {
		stops = append(stops, models.RouteStop{
			JobID:         st.JobID,
			Position:      i + 1,
			LegDistanceKm: st.LegDistanceKm,
			LegMinutes:    st.LegMinutes,
		})
	}

	ctx := c.Request.Context()
	saved, err := h.Store.SaveRoute(ctx, route, stops)
	if err != nil {
		h.storeError(c, err, "route")
		return
	}
	if req.AssignJobs {
		for _, st := range saved.Stops {
			if err := h.Store.AssignJob(ctx, st.JobID, saved.TechnicianID); err != nil {
				h.storeError(c, err, "job")
				return
			}
		}
	}

	h.publish(broker.TopicJobs, realtime.RouteEvent(saved))
	h.audit(c, service.ActionCreate, "route", idString(saved.ID), gin.H{
		"technician_id": saved.TechnicianID,
		"route_date":    req.RouteDate,
		"stops":         len(saved.Stops),
	})
	c.JSON(http.StatusCreated, saved)
}

// @Summary Saved routes
// @Description Saved routes with their stops, optionally narrowed by date and technician
// @Tags routes
// @Produce json
// @Security BearerAuth
// @Param date query string false "Route date (YYYY-MM-DD)"
// @Param technician_id query int false "Technician"
// @Success 200 {object} map[string]any
// @Router /api/routes/assignments [get]
func (h *Handler) RouteAssignments(c *gin.Context) {
	date, ok := parseDateQuery(c, "date")
	if !ok {
		return
	}
	technicianID, ok := parseIDQuery(c, "technician_id")
	if !ok {
		return
	}
	if payload := middleware.AuthPayload(c); payload != nil && payload.Role == models.RoleTechnician {
		technicianID = &payload.UserID
	}

	items, err := h.Store.ListRouteAssignments(c.Request.Context(), date, technicianID)
	if err != nil {
		h.storeError(c, err, "routes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) RouteGet(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	route, err := h.Store.GetRoute(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "route")
		return
	}
	if payload := middleware.AuthPayload(c); payload != nil &&
		payload.Role == models.RoleTechnician && route.TechnicianID != payload.UserID {
		writeError(c, http.StatusForbidden, "FORBIDDEN", "Route is not assigned to you", nil)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) RouteDelete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteRoute(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "route")
		return
	}
	h.audit(c, service.ActionDelete, "route", idString(id), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}

// parseMode normalizes the optimization mode, defaulting to distance.
func parseMode(c *gin.Context, raw string) (string, bool) {
	switch raw {
	case "", opt.ModeDistance:
		return opt.ModeDistance, true
	case opt.ModeTime:
		return opt.ModeTime, true
	default:
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "mode must be distance or time", nil)
		return "", false
	}
}

func startPoint(req *LatLngRequest) *opt.LatLng {
	if req == nil {
		return nil
	}
	return &opt.LatLng{Lat: req.Lat, Lng: req.Lng}
}

func planOutcome(res opt.Result) string {
	if res.Fallback {
		return "fallback"
	}
	return "optimized"
}
