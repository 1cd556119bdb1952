package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/service"
	"github.com/swifttiger/backend/internal/upload"
)

// @Summary Upload a job attachment
// @Description Stores a photo or document against a job. The type is sniffed from the file contents.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job id"
// @Param file formData file true "jpg, png, webp or pdf"
// @Success 201 {object} models.JobAttachment
// @Failure 400 {object} map[string]any
// @Router /api/jobs/{id}/attachments [post]
func (h *Handler) AttachmentUpload(c *gin.Context) {
	jobID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.Store.GetJob(ctx, jobID)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if !h.canTouchJob(c, job) {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Missing file field", nil)
		return
	}
	defer file.Close()

	saved, err := h.Uploader.SaveJobAttachment(jobID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrFileTooLarge):
			writeError(c, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error(), nil)
		case errors.Is(err, upload.ErrUnsupportedType):
			writeError(c, http.StatusBadRequest, "UNSUPPORTED_TYPE", err.Error(), nil)
		default:
			h.Logger.Error().Err(err).Int64("job_id", jobID).Msg("attachment save failed")
			writeError(c, http.StatusInternalServerError, "INTERNAL", "Something went wrong", nil)
		}
		return
	}

	att := models.JobAttachment{
		JobID:        jobID,
		Kind:         string(saved.Kind),
		FilePath:     saved.Path,
		OriginalName: saved.OriginalName,
		ContentType:  saved.ContentType,
		SizeBytes:    saved.SizeBytes,
	}
	if payload := middleware.AuthPayload(c); payload != nil {
		att.UploadedBy = payload.UserID
	}

	created, err := h.Store.CreateAttachment(ctx, att)
	if err != nil {
		// row failed, do not leave the file orphaned on disk
		if delErr := h.Uploader.Delete(saved.Path); delErr != nil {
			h.Logger.Warn().Err(delErr).Str("path", saved.Path).Msg("orphan cleanup failed")
		}
		h.storeError(c, err, "attachment")
		return
	}

	h.audit(c, service.ActionUpload, "attachment", idString(created.ID), gin.H{
		"job_id": jobID,
		"kind":   created.Kind,
		"size":   created.SizeBytes,
	})
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) AttachmentsList(c *gin.Context) {
	jobID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.Store.GetJob(ctx, jobID)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if !h.canTouchJob(c, job) {
		return
	}

	items, err := h.Store.ListJobAttachments(ctx, jobID)
	if err != nil {
		h.storeError(c, err, "attachments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AttachmentDelete removes the database row first and the file second;
// a leftover file is recoverable noise, a dangling row is not.
func (h *Handler) AttachmentDelete(c *gin.Context) {
	jobID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	attID, ok := parseIDParam(c, "attachment_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	job, err := h.Store.GetJob(ctx, jobID)
	if err != nil {
		h.storeError(c, err, "job")
		return
	}
	if !h.canTouchJob(c, job) {
		return
	}
	att, err := h.Store.GetAttachment(ctx, attID)
	if err != nil {
		h.storeError(c, err, "attachment")
		return
	}
	if att.JobID != jobID {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "attachment not found", nil)
		return
	}

	path, err := h.Store.DeleteAttachment(ctx, attID)
	if err != nil {
		h.storeError(c, err, "attachment")
		return
	}
	if err := h.Uploader.Delete(path); err != nil {
		h.Logger.Warn().Err(err).Str("path", path).Msg("attachment file removal failed")
	}

	h.audit(c, service.ActionDelete, "attachment", idString(attID), gin.H{"job_id": jobID})
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted"})
}
