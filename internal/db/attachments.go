package db

import (
	"context"

	"github.com/swifttiger/backend/internal/models"
)

func (s *Store) CreateAttachment(ctx context.Context, a models.JobAttachment) (models.JobAttachment, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO job_attachments (job_id, kind, file_path, original_name, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		a.JobID, a.Kind, a.FilePath, a.OriginalName, a.ContentType, a.SizeBytes, a.UploadedBy)
	err := row.Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (s *Store) ListJobAttachments(ctx context.Context, jobID int64) ([]models.JobAttachment, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, job_id, kind, file_path, original_name, content_type, size_bytes, uploaded_by, created_at
		FROM job_attachments
		WHERE job_id = $1
		ORDER BY created_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobAttachment
	for rows.Next() {
		var a models.JobAttachment
		if err := rows.Scan(&a.ID, &a.JobID, &a.Kind, &a.FilePath, &a.OriginalName, &a.ContentType, &a.SizeBytes, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAttachment(ctx context.Context, id int64) (models.JobAttachment, error) {
	var a models.JobAttachment
	err := s.Pool.QueryRow(ctx, `
		SELECT id, job_id, kind, file_path, original_name, content_type, size_bytes, uploaded_by, created_at
		FROM job_attachments WHERE id = $1`, id).
		Scan(&a.ID, &a.JobID, &a.Kind, &a.FilePath, &a.OriginalName, &a.ContentType, &a.SizeBytes, &a.UploadedBy, &a.CreatedAt)
	return a, err
}

// DeleteAttachment removes the row and returns the stored file path so the
// caller can remove the file from disk.
func (s *Store) DeleteAttachment(ctx context.Context, id int64) (string, error) {
	var path string
	err := s.Pool.QueryRow(ctx, `DELETE FROM job_attachments WHERE id = $1 RETURNING file_path`, id).Scan(&path)
	return path, err
}
