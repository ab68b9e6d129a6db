package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// SessionStore keeps the current session identifier in a plain-text file.
// A missing file means no session yet and is never an error.
type SessionStore struct {
	path string
}

// NewSessionStore points the store at its backing file.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns the stored identifier, or empty when none exists.
func (s *SessionStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Persist overwrites the stored identifier.
func (s *SessionStore) Persist(id string) error {
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
