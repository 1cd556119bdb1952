package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swifttiger/backend/internal/models"
)

const jobColumns = `j.id, j.name, j.description, j.customer_id, j.service_type, j.priority, j.status,
	j.assigned_to, j.scheduled_date, j.estimated_minutes, j.created_by, j.created_at, j.updated_at,
	c.name, COALESCE(u.name, '')`

const jobFrom = ` FROM jobs j
	JOIN customers c ON c.id = j.customer_id
	LEFT JOIN users u ON u.id = j.assigned_to`

type JobFilter struct {
	Status       string
	Priority     string
	ServiceType  string
	CustomerID   *int64
	TechnicianID *int64
	Date         *time.Time
	Q            string
	Limit        int
	Offset       int
}

func scanJob(row interface{ Scan(dest ...any) error }) (models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Name, &j.Description, &j.CustomerID, &j.ServiceType, &j.Priority, &j.Status,
		&j.AssignedTo, &j.ScheduledDate, &j.EstimatedMinutes, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt,
		&j.CustomerName, &j.TechnicianName)
	return j, err
}

func (f JobFilter) build() (string, []any) {
	var args []any
	var wheres []string
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("j.status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		wheres = append(wheres, fmt.Sprintf("j.priority = $%d", len(args)))
	}
	if f.ServiceType != "" {
		args = append(args, f.ServiceType)
		wheres = append(wheres, fmt.Sprintf("j.service_type = $%d", len(args)))
	}
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		wheres = append(wheres, fmt.Sprintf("j.customer_id = $%d", len(args)))
	}
	if f.TechnicianID != nil {
		args = append(args, *f.TechnicianID)
		wheres = append(wheres, fmt.Sprintf("j.assigned_to = $%d", len(args)))
	}
	if f.Date != nil {
		args = append(args, *f.Date)
		wheres = append(wheres, fmt.Sprintf("j.scheduled_date = $%d", len(args)))
	}
	if f.Q != "" {
		args = append(args, "%"+f.Q+"%")
		wheres = append(wheres, fmt.Sprintf("(j.name ILIKE $%d OR j.description ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args), len(args)))
	}
	if len(wheres) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(wheres, " AND "), args
}

func (s *Store) CreateJob(ctx context.Context, j models.Job) (models.Job, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO jobs (name, description, customer_id, service_type, priority, status, assigned_to, scheduled_date, estimated_minutes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		j.Name, j.Description, j.CustomerID, j.ServiceType, j.Priority, j.Status,
		j.AssignedTo, j.ScheduledDate, j.EstimatedMinutes, j.CreatedBy).Scan(&id)
	if err != nil {
		return models.Job{}, err
	}
	return s.GetJob(ctx, id)
}

func (s *Store) GetJob(ctx context.Context, id int64) (models.Job, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+jobColumns+jobFrom+` WHERE j.id = $1`, id)
	return scanJob(row)
}

func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, int64, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	whereClause, args := f.build()

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*)`+jobFrom+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + jobColumns + jobFrom + whereClause +
		fmt.Sprintf(" ORDER BY j.created_at DESC, j.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

// ExportJobs returns every job matching the filter, unpaginated but
// capped so a runaway export cannot pull the whole table into memory.
func (s *Store) ExportJobs(ctx context.Context, f JobFilter) ([]models.Job, error) {
	whereClause, args := f.build()
	query := `SELECT ` + jobColumns + jobFrom + whereClause +
		fmt.Sprintf(" ORDER BY j.created_at DESC, j.id DESC LIMIT $%d", len(args)+1)
	args = append(args, 10000)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) UpdateJob(ctx context.Context, j models.Job) (models.Job, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		UPDATE jobs
		SET name = $1, description = $2, customer_id = $3, service_type = $4, priority = $5,
			status = $6, assigned_to = $7, scheduled_date = $8, estimated_minutes = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING id`,
		j.Name, j.Description, j.CustomerID, j.ServiceType, j.Priority,
		j.Status, j.AssignedTo, j.ScheduledDate, j.EstimatedMinutes, j.ID).Scan(&id)
	if err != nil {
		return models.Job{}, err
	}
	return s.GetJob(ctx, id)
}

func (s *Store) UpdateJobStatus(ctx context.Context, id int64, status string) (models.Job, error) {
	var updated int64
	err := s.Pool.QueryRow(ctx, `
		UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING id`,
		status, id).Scan(&updated)
	if err != nil {
		return models.Job{}, err
	}
	return s.GetJob(ctx, id)
}

// CancelJob is the delete path: jobs are never hard-deleted.
func (s *Store) CancelJob(ctx context.Context, id int64) (models.Job, error) {
	return s.UpdateJobStatus(ctx, id, models.JobStatusCancelled)
}

// ListJobsByIDs returns jobs with their customer coordinates for route
// planning, preserving no particular order.
func (s *Store) ListJobsByIDs(ctx context.Context, ids []int64) ([]models.Job, map[int64][2]*float64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+`, c.lat, c.lng`+jobFrom+` WHERE j.id = ANY($1)`, ids)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	coords := make(map[int64][2]*float64)
	var out []models.Job
	for rows.Next() {
		var j models.Job
		var lat, lng *float64
		if err := rows.Scan(&j.ID, &j.Name, &j.Description, &j.CustomerID, &j.ServiceType, &j.Priority, &j.Status,
			&j.AssignedTo, &j.ScheduledDate, &j.EstimatedMinutes, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt,
			&j.CustomerName, &j.TechnicianName, &lat, &lng); err != nil {
			return nil, nil, err
		}
		coords[j.ID] = [2]*float64{lat, lng}
		out = append(out, j)
	}
	return out, coords, rows.Err()
}

// ListUnassignedJobsForDate feeds the assignment engine.
func (s *Store) ListUnassignedJobsForDate(ctx context.Context, date time.Time) ([]models.Job, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+jobFrom+`
		WHERE j.assigned_to IS NULL AND j.scheduled_date = $1 AND j.status = $2
		ORDER BY CASE j.priority WHEN 'High' THEN 0 WHEN 'Medium' THEN 1 ELSE 2 END, j.created_at ASC`,
		date, models.JobStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) ListJobsForTechnicianDate(ctx context.Context, technicianID int64, date time.Time) ([]models.Job, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+jobFrom+`
		WHERE j.assigned_to = $1 AND j.scheduled_date = $2 AND j.status NOT IN ($3, $4)
		ORDER BY j.created_at ASC`, technicianID, date, models.JobStatusCompleted, models.JobStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountOpenJobsByTechnician returns current open-job load per technician for
// a date, used for workload balancing.
func (s *Store) CountOpenJobsByTechnician(ctx context.Context, date time.Time) (map[int64]int, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT assigned_to, COUNT(*) FROM jobs
		WHERE assigned_to IS NOT NULL AND scheduled_date = $1 AND status NOT IN ($2, $3)
		GROUP BY assigned_to`, date, models.JobStatusCompleted, models.JobStatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *Store) AssignJob(ctx context.Context, jobID, technicianID int64) error {
	var updated int64
	return s.Pool.QueryRow(ctx, `
		UPDATE jobs SET assigned_to = $1, updated_at = NOW() WHERE id = $2 RETURNING id`,
		technicianID, jobID).Scan(&updated)
}
