// ABOUTME: Session persistence for the admin CLI
// ABOUTME: FileStore keeps a JSON session under the XDG config dir; MemoryStore is for tests

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the current session.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// DefaultPath returns $XDG_CONFIG_HOME/promptpal/session.json, falling back
// to ~/.config/promptpal/session.json.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "session.json"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "promptpal", "session.json")
}

// FileStore stores the session as a JSON file readable only by its owner.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore at path, or DefaultPath when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{
		path:   path,
		logger: slog.Default().With("component", "session"),
	}
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the stored session. Returns ErrNoSession when none is stored.
func (f *FileStore) Load() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session, replacing any previous one.
func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Token == "" {
		return errors.New("refusing to save empty session")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing session file: %w", err)
	}

	f.logger.Debug("saved session", "username", s.Profile.Username, "path", f.path)
	return nil
}

// Clear removes the stored session. Clearing an absent session succeeds.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	f.logger.Debug("cleared session", "path", f.path)
	return nil
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored session or ErrNoSession.
func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, ErrNoSession
	}
	s := *m.session
	return &s, nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(s *Session) error {
	if s == nil || s.Token == "" {
		return errors.New("refusing to save empty session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *s
	m.session = &c
	return nil
}

// Clear drops the stored session.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	return nil
}
