package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/swifttiger/backend/internal/broker"
	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/export"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/metrics"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/realtime"
	"github.com/swifttiger/backend/internal/service"
)

type JobRequest struct {
	Name             string `json:"name" validate:"required,min=2,max=200"`
	Description      string `json:"description" validate:"max=5000"`
	CustomerID       int64  `json:"customer_id" validate:"required,gt=0"`
	ServiceType      string `json:"service_type" validate:"required"`
	Priority         string `json:"priority"`
	Status           string `json:"status"`
	AssignedTo       *int64 `json:"assigned_to" validate:"omitempty,gt=0"`
	ScheduledDate    string `json:"scheduled_date"`
	EstimatedMinutes int    `json:"estimated_minutes" validate:"omitempty,gte=5,lte=480"`
}

type JobStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) JobsList(c *gin.Context) {
	f, ok := h.parseJobFilter(c)
	if !ok {
		return
	}
	f.Limit, f.Offset = parsePagination(c)

	items, total, err := h.Store.ListJobs(c.Request.Context(), f)
	if err != nil {
		h.storeError(c, err, "jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": f.Limit, "offset": f.Offset})
}

func (h *Handler) JobCreate(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	job, ok := h.jobFromRequest(c, req, models.Job{})
	if !ok {
		return
	}
	if job.AssignedTo != nil && !h.validateAssignee(c, *job.AssignedTo) {
		return
	}
	if payload := middleware.AuthPayload(c); payload != nil {
		job.CreatedBy = payload.UserID
	}

	created, err := h.Store.CreateJob(c.Request.Context(), job)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}

	metrics.JobTransitions.WithLabelValues(created.Status).Inc()
	h.publish(broker.TopicJobs, realtime.JobEvent(realtime.EventJobCreated, created))
	h.audit(c, service.ActionCreate, "job", idString(created.ID), gin.H{"name": created.Name})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) JobGet(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.Store.GetJob(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if !h.canTouchJob(c, job) {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) JobUpdate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	existing, err := h.Store.GetJob(ctx, id)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}

	job, ok := h.jobFromRequest(c, req, existing)
	if !ok {
		return
	}
	reassigned := job.AssignedTo != nil &&
		(existing.AssignedTo == nil || *existing.AssignedTo != *job.AssignedTo)
	if reassigned && !h.validateAssignee(c, *job.AssignedTo) {
		return
	}

	updated, err := h.Store.UpdateJob(ctx, job)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}

	if updated.Status != existing.Status {
		metrics.JobTransitions.WithLabelValues(updated.Status).Inc()
	}
	evt := realtime.EventJobUpdated
	if reassigned {
		evt = realtime.EventJobAssigned
	}
	h.publish(broker.TopicJobs, realtime.JobEvent(evt, updated))
	h.audit(c, service.ActionUpdate, "job", idString(updated.ID), nil)
	c.JSON(http.StatusOK, updated)
}

// JobStatus moves a job through its lifecycle. The assigned technician
// may call this; full edits stay with dispatch roles.
func (h *Handler) JobStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req JobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	status := models.NormalizeJobStatus(req.Status)
	if !models.ValidJobStatus(status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status", nil)
		return
	}

	ctx := c.Request.Context()
	job, err := h.Store.GetJob(ctx, id)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if !h.canTouchJob(c, job) {
		return
	}
	if job.Status == status {
		c.JSON(http.StatusOK, job)
		return
	}

	updated, err := h.Store.UpdateJobStatus(ctx, id, status)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}

	metrics.JobTransitions.WithLabelValues(status).Inc()
	h.publish(broker.TopicJobs, realtime.JobEvent(realtime.EventJobStatus, updated))
	h.audit(c, service.ActionStatusChange, "job", idString(id), gin.H{"from": job.Status, "to": status})
	c.JSON(http.StatusOK, updated)
}

// JobDelete cancels a job. Jobs are never hard-deleted: routes,
// attachments and the action log keep referencing them.
func (h *Handler) JobDelete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.Store.GetJob(ctx, id)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if job.Status == models.JobStatusCancelled {
		c.JSON(http.StatusOK, gin.H{"message": "Job already cancelled"})
		return
	}

	if _, err := h.Store.CancelJob(ctx, id); err != nil {
		h.storeError(c, err, "job")
		return
	}

	job.Status = models.JobStatusCancelled
	metrics.JobTransitions.WithLabelValues(models.JobStatusCancelled).Inc()
	h.publish(broker.TopicJobs, realtime.JobEvent(realtime.EventJobCancelled, job))
	h.audit(c, service.ActionCancel, "job", idString(id), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Job cancelled"})
}

// @Summary Export jobs
// @Description Jobs matching the filters as an xlsx workbook
// @Tags jobs
// @Produce application/octet-stream
// @Security BearerAuth
// @Param status query string false "Job status"
// @Param technician_id query int false "Assigned technician"
// @Param date query string false "Scheduled date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /api/jobs/export [get]
func (h *Handler) JobsExport(c *gin.Context) {
	f, ok := h.parseJobFilter(c)
	if !ok {
		return
	}
	jobs, err := h.Store.ExportJobs(c.Request.Context(), f)
	if err != nil {
		h.storeError(c, err, "jobs")
		return
	}

	book, err := export.JobsWorkbook(jobs)
	if err != nil {
		h.Logger.Error().Err(err).Msg("workbook build failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		return
	}

	h.audit(c, service.ActionExport, "job", "", gin.H{"count": len(jobs)})
	c.Header("Content-Disposition", `attachment; filename="`+export.JobsFilename(time.Now())+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", book)
}

// parseJobFilter reads the shared list/export query parameters. A
// technician caller is always pinned to their own assignments.
func (h *Handler) parseJobFilter(c *gin.Context) (db.JobFilter, bool) {
	f := db.JobFilter{Q: strings.TrimSpace(c.Query("q"))}
	if raw := c.Query("status"); raw != "" {
		f.Status = models.NormalizeJobStatus(raw)
		if !models.ValidJobStatus(f.Status) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter", nil)
			return f, false
		}
	}
	if raw := c.Query("priority"); raw != "" {
		f.Priority = models.NormalizeJobPriority(raw)
		if !models.ValidJobPriority(f.Priority) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown priority filter", nil)
			return f, false
		}
	}
	if raw := c.Query("service_type"); raw != "" {
		f.ServiceType = models.NormalizeServiceType(raw)
		if !models.ValidServiceType(f.ServiceType) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown service_type filter", nil)
			return f, false
		}
	}
	var ok bool
	if f.CustomerID, ok = parseIDQuery(c, "customer_id"); !ok {
		return f, false
	}
	if f.TechnicianID, ok = parseIDQuery(c, "technician_id"); !ok {
		return f, false
	}
	if f.Date, ok = parseDateQuery(c, "date"); !ok {
		return f, false
	}

	if payload := middleware.AuthPayload(c); payload != nil && payload.Role == models.RoleTechnician {
		f.TechnicianID = &payload.UserID
	}
	return f, true
}

// jobFromRequest applies a request body over a base job. For creates
// the base is the zero Job; for updates it is the stored row, so
// omitted enum fields keep their current values.
func (h *Handler) jobFromRequest(c *gin.Context, req JobRequest, base models.Job) (models.Job, bool) {
	job := base
	job.Name = strings.TrimSpace(req.Name)
	job.Description = strings.TrimSpace(req.Description)
	job.CustomerID = req.CustomerID
	job.ServiceType = models.NormalizeServiceType(req.ServiceType)
	job.AssignedTo = req.AssignedTo

	if req.Priority != "" {
		job.Priority = models.NormalizeJobPriority(req.Priority)
	} else if job.Priority == "" {
		job.Priority = models.JobPriorityMedium
	}
	if req.Status != "" {
		job.Status = models.NormalizeJobStatus(req.Status)
	} else if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	if req.EstimatedMinutes > 0 {
		job.EstimatedMinutes = req.EstimatedMinutes
	} else if job.EstimatedMinutes == 0 {
		job.EstimatedMinutes = 60
	}

	if !models.ValidServiceType(job.ServiceType) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown service_type", nil)
		return job, false
	}
	if !models.ValidJobPriority(job.Priority) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown priority", nil)
		return job, false
	}
	if !models.ValidJobStatus(job.Status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status", nil)
		return job, false
	}

	job.ScheduledDate = nil
	if req.ScheduledDate != "" {
		d, err := time.Parse("2006-01-02", req.ScheduledDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "scheduled_date must be YYYY-MM-DD", nil)
			return job, false
		}
		job.ScheduledDate = &d
	}
	return job, true
}

// validateAssignee confirms assigned_to points at an active technician.
func (h *Handler) validateAssignee(c *gin.Context, id int64) bool {
	tech, err := h.Store.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusBadRequest, "INVALID_REFERENCE", "Assigned technician does not exist", nil)
			return false
		}
		h.storeError(c, err, "user")
		return false
	}
	if tech.Role != models.RoleTechnician {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Jobs can only be assigned to technicians", nil)
		return false
	}
	if !tech.IsActive {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Assigned technician is inactive", nil)
		return false
	}
	return true
}

// canTouchJob enforces job visibility: dispatch roles see every job,
// technicians only their own assignments.
func (h *Handler) canTouchJob(c *gin.Context, job models.Job) bool {
	payload := middleware.AuthPayload(c)
	if payload == nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return false
	}
	if models.CanDispatch(payload.Role) {
		return true
	}
	if job.AssignedTo != nil && *job.AssignedTo == payload.UserID {
		return true
	}
	writeError(c, http.StatusForbidden, "FORBIDDEN", "Job is not assigned to you", nil)
	return false
}
