package association

import "sync"

// MemoryStore is an in-memory implementation of the Store interface.
// This is primarily useful for testing and platforms without durable
// storage of their own.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored records.
func (s *MemoryStore) Load() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Save replaces the stored records.
func (s *MemoryStore) Save(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]Record, len(records))
	copy(s.records, records)
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
