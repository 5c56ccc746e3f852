package user

import (
	"context"

	"accesos/pkg/claims"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	RoleID   int    `json:"id_rol"`
	RoleName string `json:"nombre_rol"`
	Active   bool   `json:"activo"`
}

func (u *User) Identity() claims.User {
	return claims.User{
		ID:       u.ID,
		Username: u.Username,
		Rol:      claims.Role{ID: u.RoleID, Name: u.RoleName},
	}
}

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByUsername(ctx context.Context, username string) (*User, error)
}
