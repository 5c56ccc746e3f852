package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"accesos/pkg/claims"
)

// FileStore keeps both keys in one JSON document. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// reader sees either the old pair or the new one.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

type fileDocument map[string]json.RawMessage

func (s *FileStore) Save(_ context.Context, token string, user claims.User) error {
	rawToken, err := json.Marshal(token)
	if err != nil {
		return err
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// the user record is kept as a string, the way browser storage holds it
	rawUserString, err := json.Marshal(string(rawUser))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileDocument{
		KeyToken: rawToken,
		KeyUser:  rawUserString,
	}, "", "  ")
	if err != nil {
		return err
	}

	return s.replace(data)
}

func (s *FileStore) Load(_ context.Context) (*Entry, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil
	}

	var token, user string
	if err := json.Unmarshal(doc[KeyToken], &token); err != nil {
		return nil, nil
	}
	if err := json.Unmarshal(doc[KeyUser], &user); err != nil {
		return nil, nil
	}

	return entryFromRaw(token, []byte(user)), nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) replace(data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
