package claims

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

type contextKey string

const (
	TokenContextKey contextKey = "token"
)

var ErrInvalidRole = errors.New("invalid role claim")

type Role struct {
	ID   int    `json:"id_rol"`
	Name string `json:"nombre_rol"`
}

// User is the identity derived from a token. It is also the record kept
// next to the token in client storage.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Rol      Role   `json:"rol"`
}

type Claims struct {
	UserID int64           `json:"user_id,omitempty"`
	Rol    json.RawMessage `json:"rol,omitempty"`

	// older tokens carried these instead of sub/user_id
	LegacyID       int64  `json:"id,omitempty"`
	LegacyUsername string `json:"username,omitempty"`

	jwt.StandardClaims
}

func New(u User, exp time.Time) *Claims {
	rol, _ := json.Marshal(u.Rol)
	return &Claims{
		UserID: u.ID,
		Rol:    rol,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.Username,
			IssuedAt:  time.Now().UTC().Unix(),
			ExpiresAt: exp.UTC().Unix(),
		},
	}
}

func Sign(key []byte, c *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
}

// SessionID is the jti of tokens bound to a server-side session.
func (c *Claims) SessionID() string {
	return c.Id
}

func (c *Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Role parses the rol claim. A role without a positive integral id_rol is
// rejected even when the rest of the token is fine.
func (c *Claims) Role() (Role, error) {
	if len(c.Rol) == 0 || string(c.Rol) == "null" {
		return Role{}, ErrInvalidRole
	}

	var raw struct {
		ID   any `json:"id_rol"`
		Name any `json:"nombre_rol"`
	}
	if err := json.Unmarshal(c.Rol, &raw); err != nil {
		return Role{}, ErrInvalidRole
	}

	id, ok := raw.ID.(float64)
	if !ok || id <= 0 || id != math.Trunc(id) || id > math.MaxInt32 {
		return Role{}, ErrInvalidRole
	}

	name, _ := raw.Name.(string)
	return Role{ID: int(id), Name: name}, nil
}

func (c *Claims) User() (User, error) {
	r, err := c.Role()
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:       c.UserID,
		Username: c.Subject,
		Rol:      r,
	}
	if u.ID == 0 {
		u.ID = c.LegacyID
	}
	if u.Username == "" {
		u.Username = c.LegacyUsername
	}
	return u, nil
}
