package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"accesos/pkg/claims"
)

const clientStorageSchema = `
	CREATE TABLE IF NOT EXISTS client_storage (
		storage_key VARCHAR(64) NOT NULL PRIMARY KEY,
		storage_value TEXT NOT NULL
	)`

// SQLStore keeps the pair in a key/value table. The statements are plain
// enough for both MySQL and SQLite.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, clientStorageSchema)
	return err
}

func (s *SQLStore) Save(ctx context.Context, token string, user claims.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM client_storage WHERE storage_key IN (?, ?)",
		KeyToken, KeyUser,
	); err != nil {
		return fmt.Errorf("failed to reset client storage: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO client_storage (storage_key, storage_value) VALUES (?, ?), (?, ?)",
		KeyToken, token, KeyUser, string(raw),
	); err != nil {
		return fmt.Errorf("failed to write client storage: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) Load(ctx context.Context) (*Entry, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT storage_key, storage_value FROM client_storage WHERE storage_key IN (?, ?)",
		KeyToken, KeyUser,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read client storage: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	token, ok1 := values[KeyToken]
	user, ok2 := values[KeyUser]
	if !ok1 || !ok2 {
		return nil, nil
	}
	return entryFromRaw(token, []byte(user)), nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx,
		"DELETE FROM client_storage WHERE storage_key IN (?, ?)",
		KeyToken, KeyUser,
	)
	return err
}
