package association

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the store file format.
const StateVersion = 1

// fileState is the on-disk layout of the file store.
type fileState struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Records are the associated cars.
	Records []Record `json:"records,omitempty"`
}

// FileStore persists records to a JSON file, durable across process
// restarts.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the file at path. The file is
// created on first Save; a missing file loads as empty state.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the records from disk.
func (s *FileStore) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state.Records, nil
}

// Save writes the records to disk.
func (s *FileStore) Save(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state := fileState{
		Version: StateVersion,
		SavedAt: time.Now(),
		Records: records,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
