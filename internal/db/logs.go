package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swifttiger/backend/internal/models"
)

// The action log is append-only: this file intentionally exposes no update
// or delete path.

type ActionLogFilter struct {
	UserID   *int64
	Action   string
	Resource string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

func (s *Store) AppendActionLog(ctx context.Context, l models.ActionLog) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO action_logs (user_id, action, resource, resource_id, details, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.UserID, l.Action, l.Resource, l.ResourceID, l.Details, l.IP, l.UserAgent)
	return err
}

func (s *Store) ListActionLogs(ctx context.Context, f ActionLogFilter) ([]models.ActionLog, int64, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)

	var args []any
	var wheres []string
	if f.UserID != nil {
		args = append(args, *f.UserID)
		wheres = append(wheres, fmt.Sprintf("l.user_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		wheres = append(wheres, fmt.Sprintf("l.action = $%d", len(args)))
	}
	if f.Resource != "" {
		args = append(args, f.Resource)
		wheres = append(wheres, fmt.Sprintf("l.resource = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		wheres = append(wheres, fmt.Sprintf("l.created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		wheres = append(wheres, fmt.Sprintf("l.created_at < $%d", len(args)))
	}
	whereClause := ""
	if len(wheres) > 0 {
		whereClause = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_logs l`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT l.id, l.user_id, l.action, l.resource, l.resource_id, l.details, l.ip, l.user_agent, l.created_at,
			COALESCE(u.name, '')
		FROM action_logs l
		LEFT JOIN users u ON u.id = l.user_id` + whereClause +
		fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.ActionLog
	for rows.Next() {
		var l models.ActionLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID, &l.Details, &l.IP, &l.UserAgent, &l.CreatedAt, &l.UserName); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}
