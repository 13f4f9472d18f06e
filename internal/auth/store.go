package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/stemsi/exstem-client/internal/model"
)

// Session is the persisted slice of auth state: the bearer token and the
// user payload it was issued for.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user,omitempty"`
}

// Store persists the session to a JSON file between runs, the terminal
// counterpart of the browser's localStorage.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted session. Returns (nil, nil) when none exists.
func (s *Store) Load() (*Session, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session with owner-only permissions.
func (s *Store) Save(sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the persisted session. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
