package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/db"
)

// @Summary List action logs
// @Description Append-only audit trail, newest first
// @Tags logs
// @Produce json
// @Security BearerAuth
// @Param user_id query int false "Acting user"
// @Param action query string false "Action, e.g. CREATE"
// @Param resource query string false "Resource, e.g. job"
// @Param from query string false "Start date (YYYY-MM-DD, inclusive)"
// @Param to query string false "End date (YYYY-MM-DD, exclusive)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Failure 403 {object} map[string]any
// @Router /api/logs [get]
func (h *Handler) LogsList(c *gin.Context) {
	f := db.ActionLogFilter{
		Action:   strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Resource: strings.ToLower(strings.TrimSpace(c.Query("resource"))),
	}
	f.Limit, f.Offset = parsePagination(c)

	var ok bool
	if f.UserID, ok = parseIDQuery(c, "user_id"); !ok {
		return
	}
	if f.From, ok = parseDateQuery(c, "from"); !ok {
		return
	}
	if f.To, ok = parseDateQuery(c, "to"); !ok {
		return
	}
	if f.To != nil {
		// the filter bound is exclusive, so "to" covers its whole day
		end := f.To.Add(24 * time.Hour)
		f.To = &end
	}

	items, total, err := h.Store.ListActionLogs(c.Request.Context(), f)
	if err != nil {
		h.storeError(c, err, "logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": f.Limit, "offset": f.Offset})
}
