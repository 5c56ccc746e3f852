package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accesos/pkg/role"
	"accesos/pkg/session"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type ServiceInterface interface {
	Register(ctx context.Context, username, password string, roleID int) (*User, error)
	Login(ctx context.Context, username, password string, expiresAt time.Time) (*User, string, error)
	Logout(ctx context.Context, sessionID string) error
}

type Service struct {
	Repo    Repository
	Session session.Repository
}

func NewService(repo Repository, session session.Repository) *Service {
	return &Service{Repo: repo, Session: session}
}

func (s *Service) Register(ctx context.Context, username, password string, roleID int) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if !role.Valid(roleID) {
		return nil, ErrInvalidRole
	}

	exist, err := s.Repo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if exist != nil && err == nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password error: %w", err)
	}

	user := &User{
		Username: username,
		Password: string(hashedPassword),
		RoleID:   roleID,
		RoleName: role.Name(roleID),
		Active:   true,
	}

	if err := s.Repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks the credentials and opens a server-side session that lives
// until expiresAt, the expiry of the token the caller is about to issue.
// The returned session id goes into that token.
func (s *Service) Login(ctx context.Context, username, password string, expiresAt time.Time) (*User, string, error) {
	if username == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	user, err := s.Repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.Active {
		return nil, "", ErrInvalidCredentials
	}

	sessionID, err := s.Session.Create(ctx, user.ID, uuid.NewString(), expiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return user, sessionID, nil
}

// Logout revokes the one session behind a token.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.Session.Invalidate(ctx, sessionID)
}
