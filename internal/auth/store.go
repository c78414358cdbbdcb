package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// FileStore keeps the session as JSON in a file readable only by its owner.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load returns the stored session, or nil when none has been saved.
func (s *FileStore) Load() (*Session, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "read session file")
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, appErrors.Wrap(err, "decode session file")
	}
	if session.Token == "" {
		return nil, nil
	}
	return &session, nil
}

// Save writes the session atomically with 0600 permissions.
func (s *FileStore) Save(session *Session) error {
	if session == nil {
		return s.Clear()
	}

	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return appErrors.Wrap(err, "encode session")
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return appErrors.Wrap(err, "create session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return appErrors.Wrap(err, "create session file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return appErrors.Wrap(err, "set session file mode")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return appErrors.Wrap(err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return appErrors.Wrap(err, "write session file")
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return appErrors.Wrap(err, "replace session file")
	}
	return nil
}

// Clear deletes the session file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErrors.Wrap(err, "remove session file")
	}
	return nil
}
