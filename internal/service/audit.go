package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/swifttiger/backend/internal/db"
	"github.com/swifttiger/backend/internal/models"
)

const (
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionCancel         = "CANCEL"
	ActionStatusChange   = "STATUS_CHANGE"
	ActionAssign         = "ASSIGN"
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionRegister       = "REGISTER"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionUpload         = "UPLOAD"
	ActionImport         = "IMPORT"
	ActionExport         = "EXPORT"
	ActionOptimize       = "OPTIMIZE"
)

// Auditor writes the append-only action trail. Failures are logged and
// swallowed: an audit miss must never fail the request that caused it.
type Auditor struct {
	Store  *db.Store
	Logger zerolog.Logger
}

func (a *Auditor) Record(ctx context.Context, userID int64, action, resource, resourceID string, details any, ip, userAgent string) {
	var raw json.RawMessage
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			raw = b
		}
	}
	entry := models.ActionLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    raw,
		IP:         ip,
		UserAgent:  userAgent,
	}

	// detach from the request context so a client disconnect cannot
	// drop the audit record
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.Store.AppendActionLog(ctx, entry); err != nil {
		a.Logger.Error().
			Err(err).
			Str("action", action).
			Str("resource", resource).
			Str("resource_id", resourceID).
			Msg("action log write failed")
	}
}
