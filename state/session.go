package state

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

// SessionStore persists the identifier of the current session's user so a
// login survives process restarts. Only the identifier is retained;
// everything else is refetched on the next load.
type SessionStore interface {
	Load() (string, error)
	Save(userID string) error
	Clear() error
}

// FileSession keeps the session record in a small JSON file.
type FileSession struct {
	path string
}

// NewFileSession creates a file-backed session store at path.
func NewFileSession(path string) *FileSession {
	return &FileSession{path: path}
}

type sessionRecord struct {
	UserID string `json:"userId"`
}

// Load returns the persisted user id, or "" when no session is stored.
func (f *FileSession) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var rec sessionRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// Save writes the user id, creating parent directories as needed.
func (f *FileSession) Save(userID string) error {
	data, err := sonic.Marshal(sessionRecord{UserID: userID})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(f.path, data, 0o600)
}

// Clear removes the persisted session, if any.
func (f *FileSession) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
