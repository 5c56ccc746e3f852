package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY %s,
		username VARCHAR(60) NOT NULL UNIQUE,
		password VARCHAR(120) NOT NULL,
		role_id INTEGER NOT NULL,
		role_name VARCHAR(60) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`

type SQLRepo struct {
	DB *sql.DB
	// AutoIncrement is the column keyword of the driver in use:
	// AUTO_INCREMENT for MySQL, AUTOINCREMENT for SQLite.
	AutoIncrement string
}

func NewSQLRepo(db *sql.DB, autoIncrement string) *SQLRepo {
	return &SQLRepo{DB: db, AutoIncrement: autoIncrement}
}

func (r *SQLRepo) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, fmt.Sprintf(usersSchema, r.AutoIncrement))
	return err
}

func (r *SQLRepo) Create(ctx context.Context, user *User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password, role_id, role_name, active) VALUES (?, ?, ?, ?, ?)",
		user.Username, user.Password, user.RoleID, user.RoleName, user.Active,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *SQLRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, username, password, role_id, role_name, active FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.RoleID, &u.RoleName, &u.Active)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}
