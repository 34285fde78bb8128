package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
)

// Snapshot is the persisted authentication context: an opaque bearer
// token and the identity it was last verified against. Both fields are
// written together or cleared together.
type Snapshot struct {
	Token    string           `json:"token,omitempty"`
	Identity *models.Identity `json:"identity,omitempty"`
}

// IsAnonymous reports whether no token is held.
func (s Snapshot) IsAnonymous() bool {
	return s.Token == ""
}

// Storage persists a Snapshot between runs. Implementations must treat
// "nothing stored" as an empty Snapshot, not an error.
type Storage interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Clear() error
}

// TokenSource adapts a Storage into the read-only token view the
// gateway consumes. Load failures read as anonymous.
func TokenSource(storage Storage) gateway.TokenSource {
	return storageTokenSource{storage: storage}
}

type storageTokenSource struct {
	storage Storage
}

func (s storageTokenSource) Token() string {
	snap, err := s.storage.Load()
	if err != nil {
		return ""
	}
	return snap.Token
}

// MemoryStorage keeps the snapshot in process memory. Used in tests and
// for throwaway sessions.
type MemoryStorage struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, nil
}

func (m *MemoryStorage) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return nil
}

// FileStorage persists the snapshot as a JSON file, the desktop
// equivalent of browser local storage.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode session file: %w", err)
	}
	return snap, nil
}

func (f *FileStorage) Save(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (f *FileStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
