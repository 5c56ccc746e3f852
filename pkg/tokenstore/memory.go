package tokenstore

import (
	"context"
	"encoding/json"
	"sync"

	"accesos/pkg/claims"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (s *MemoryStore) Save(_ context.Context, token string, user claims.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyToken] = token
	s.values[KeyUser] = string(raw)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok1 := s.values[KeyToken]
	user, ok2 := s.values[KeyUser]
	if !ok1 || !ok2 {
		return nil, nil
	}
	return entryFromRaw(token, []byte(user)), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, KeyToken)
	delete(s.values, KeyUser)
	return nil
}

// Set writes a single raw key. It exists to reproduce partial or corrupted
// profiles.
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
