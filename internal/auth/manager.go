package auth

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// credentials is the on-disk shape of the session credentials file.
type credentials struct {
	AuthToken string `toml:"auth_token"`
	UserID    string `toml:"user_id"`
}

// Manager holds the current session identity: the bearer token and the
// current user id. It is read-mostly; writes happen on login/logout.
type Manager struct {
	mu    sync.RWMutex
	path  string
	creds credentials
}

// NewManager loads credentials from path. A missing file is not an
// error: the manager starts empty and Token()/CurrentUserID() return "".
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if _, err := toml.DecodeFile(path, &m.creds); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// Token returns the bearer token, or "" when not authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AuthToken
}

// CurrentUserID returns the authenticated user id, or "".
func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.UserID
}

// SetCredentials stores a new token and user id and persists them.
func (m *Manager) SetCredentials(token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = credentials{AuthToken: token, UserID: userID}
	return m.save()
}

// Clear wipes credentials in memory and on disk.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = credentials{}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(m.creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
