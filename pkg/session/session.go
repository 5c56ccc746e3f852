package session

import (
	"context"
	"time"
)

// Session is the server-side record behind one issued token. Its ID travels
// in the token as the jti claim; deleting the record revokes that token
// before its expiry.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repository interface {
	Create(ctx context.Context, userID int64, sessionID string, expiresAt time.Time) (string, error)
	IsValid(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}
