package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSession is returned by LoadSession when nothing has been saved yet.
var ErrNoSession = errors.New("not logged in")

// Session is the signed-in state: where the server lives and the bearer token.
// It is passed explicitly to every client rather than read from a global.
type Session struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"auth_token"`
	UserID  uint   `json:"user_id,omitempty"`
	Role    string `json:"role,omitempty"`
}

func (s *Session) LoggedIn() bool { return s != nil && s.Token != "" }

// DefaultSessionPath is $XDG_CONFIG_HOME/skillcert/session.json or its platform equivalent.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skillcert", "session.json"), nil
}

func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session readable by the current user only.
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
