package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/aiodash/aiodash/pkg/protocol"
)

// Storage persists the token and user across process restarts. Only the
// Store writes to it.
type Storage interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	LoadUser() (*protocol.User, error)
	SaveUser(user *protocol.User) error
	Clear() error
}

// DefaultPath returns the default location of the session file.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "aiodash", "session.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "aiodash", "session.json")
}

type sessionFile struct {
	Token   string         `json:"auth_token,omitempty"`
	User    *protocol.User `json:"user,omitempty"`
	SavedAt time.Time      `json:"saved_at"`
}

// FileStorage keeps the session in a JSON file readable only by the owner.
// Writes go through a temp file and rename.
type FileStorage struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   sessionFile
}

// NewFileStorage returns storage backed by path. The file is read lazily.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) LoadToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return "", err
	}
	return f.data.Token, nil
}

func (f *FileStorage) LoadUser() (*protocol.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	return cloneUser(f.data.User), nil
}

func (f *FileStorage) SaveToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	next := f.data
	next.Token = token
	return f.writeLocked(next)
}

func (f *FileStorage) SaveUser(user *protocol.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	next := f.data
	next.User = cloneUser(user)
	return f.writeLocked(next)
}

// Clear removes the session file.
func (f *FileStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = sessionFile{}
	f.loaded = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Must be called with lock held.
func (f *FileStorage) loadLocked() error {
	if f.loaded {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse session file %s: %w", f.path, err)
	}
	f.data = sf
	f.loaded = true
	return nil
}

// Must be called with lock held.
func (f *FileStorage) writeLocked(next sessionFile) error {
	next.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename session file: %w", err)
	}

	f.data = next
	f.loaded = true
	return nil
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
	user  *protocol.User

	// FailSave makes SaveToken and SaveUser fail when set.
	FailSave error
}

func (m *MemoryStorage) LoadToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStorage) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.token = token
	return nil
}

func (m *MemoryStorage) LoadUser() (*protocol.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.user), nil
}

func (m *MemoryStorage) SaveUser(user *protocol.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.user = cloneUser(user)
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	return nil
}

func cloneUser(u *protocol.User) *protocol.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
