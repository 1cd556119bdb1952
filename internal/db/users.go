package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/swifttiger/backend/internal/models"
)

const userColumns = `id, name, email, password_hash, role, skills, is_active, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Skills, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, skills, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		u.Name, u.Email, u.PasswordHash, u.Role, u.Skills, u.IsActive)
	return scanUser(row)
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, role string, active *bool, limit, offset int) ([]models.User, int64, error) {
	limit, offset = clampPage(limit, offset)

	var args []any
	var wheres []string
	if role != "" {
		args = append(args, role)
		wheres = append(wheres, fmt.Sprintf("role = $%d", len(args)))
	}
	if active != nil {
		args = append(args, *active)
		wheres = append(wheres, fmt.Sprintf("is_active = $%d", len(args)))
	}
	whereClause := ""
	if len(wheres) > 0 {
		whereClause = " WHERE " + strings.Join(wheres, " AND ")
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) ListTechnicians(ctx context.Context) ([]models.User, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = $1 AND is_active
		ORDER BY name ASC, id ASC`, models.RoleTechnician)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, role = $3, skills = $4, is_active = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+userColumns,
		u.Name, u.Email, u.Role, u.Skills, u.IsActive, u.ID)
	return scanUser(row)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	var updated int64
	return s.Pool.QueryRow(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2 RETURNING id`,
		passwordHash, id).Scan(&updated)
}

func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	var updated int64
	return s.Pool.QueryRow(ctx, `
		UPDATE users SET is_active = false, updated_at = NOW() WHERE id = $1 RETURNING id`,
		id).Scan(&updated)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}
