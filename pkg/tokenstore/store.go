// Package tokenstore persists the session token and the user record that
// goes with it. The two are always written and removed together.
package tokenstore

import (
	"context"
	"encoding/json"
	"strings"

	"accesos/pkg/claims"
)

// Keys used by every backend. They match the keys of the browser console
// so a profile can be moved between them.
const (
	KeyToken = "access_token"
	KeyUser  = "user"
)

type Entry struct {
	Token string
	User  claims.User
}

type Store interface {
	// Save writes both artifacts or neither.
	Save(ctx context.Context, token string, user claims.User) error
	// Load returns nil when either key is missing or the user record does
	// not parse. The error is reserved for storage failures.
	Load(ctx context.Context) (*Entry, error)
	// Clear removes both keys. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

func entryFromRaw(token string, user []byte) *Entry {
	if strings.TrimSpace(token) == "" || len(user) == 0 {
		return nil
	}

	var u claims.User
	if err := json.Unmarshal(user, &u); err != nil {
		return nil
	}
	return &Entry{Token: token, User: u}
}
