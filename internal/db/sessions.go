package db

import (
	"context"

	"github.com/swifttiger/backend/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, user_agent, client_ip, is_revoked, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, sess.RefreshToken, sess.UserAgent, sess.ClientIP, sess.IsRevoked, sess.ExpiresAt)
	return err
}

func (s *Store) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	var sess models.Session
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, refresh_token, user_agent, client_ip, is_revoked, expires_at, created_at
		FROM sessions WHERE refresh_token = $1`, refreshToken).
		Scan(&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.UserAgent, &sess.ClientIP, &sess.IsRevoked, &sess.ExpiresAt, &sess.CreatedAt)
	return sess, err
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	var revoked string
	return s.Pool.QueryRow(ctx, `
		UPDATE sessions SET is_revoked = true WHERE id = $1 RETURNING id`, id).Scan(&revoked)
}

// RevokeUserSessions invalidates every refresh token a user holds, used on
// password change.
func (s *Store) RevokeUserSessions(ctx context.Context, userID int64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE sessions SET is_revoked = true WHERE user_id = $1`, userID)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW() OR is_revoked`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
