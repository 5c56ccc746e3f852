package session

import (
	"context"
	"database/sql"
	"time"
)

const sessionsSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`

type SQLSessionRepo struct {
	DB *sql.DB
}

func NewSQLSessionRepo(db *sql.DB) *SQLSessionRepo {
	return &SQLSessionRepo{DB: db}
}

func (r *SQLSessionRepo) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, sessionsSchema)
	return err
}

func (r *SQLSessionRepo) Create(ctx context.Context, userID int64, sessionID string, expiresAt time.Time) (string, error) {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, userID, time.Now().UTC().Unix(), expiresAt.UTC().Unix())

	return sessionID, err
}

func (r *SQLSessionRepo) IsValid(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE id = ? AND expires_at > ?
		)
	`, sessionID, time.Now().UTC().Unix()).Scan(&exists)
	return exists, err
}

func (r *SQLSessionRepo) Invalidate(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = ?
	`, sessionID)
	return err
}
