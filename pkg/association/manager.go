package association

import (
	"sort"
	"sync"

	"github.com/carlink-protocol/carlink-go/pkg/log"
)

// Manager tracks which car identifiers are already trusted, across
// sessions. Membership here is the sole predicate for "is reconnection,
// not association".
//
// All operations are synchronous and idempotent; Rename is the one
// operation whose boolean outcome depends on prior state. The in-memory
// view is authoritative; every mutation is written through to the
// injected store, and write failures are reported to the logger without
// disturbing the in-memory state.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	records map[string]string // id -> name
	logger  log.Logger
}

// NewManager creates a manager over the given store, loading any
// persisted records. Pass a nil logger to disable logging.
func NewManager(store Store, logger log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.NoopLogger{}
	}

	records, err := store.Load()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:   store,
		records: make(map[string]string, len(records)),
		logger:  logger,
	}
	for _, r := range records {
		m.records[r.ID] = r.Name
	}
	return m, nil
}

// Add upserts a car record.
func (m *Manager) Add(id, name string) {
	m.mu.Lock()
	m.records[id] = name
	m.persistLocked()
	m.mu.Unlock()
}

// Remove deletes a car record. Safe to call for absent identifiers.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	if _, ok := m.records[id]; ok {
		delete(m.records, id)
		m.persistLocked()
	}
	m.mu.Unlock()
}

// Rename updates the name of an existing record. Returns false without
// any state change if the identifier is absent.
func (m *Manager) Rename(id, newName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return false
	}
	m.records[id] = newName
	m.persistLocked()
	return true
}

// ClearAll removes every record.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.records = make(map[string]string)
	m.persistLocked()
	m.mu.Unlock()
}

// IsAssociated returns true if the identifier belongs to a trusted car.
func (m *Manager) IsAssociated(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok
}

// Name returns the stored name for an identifier.
func (m *Manager) Name(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.records[id]
	return name, ok
}

// Identifiers returns all trusted identifiers, sorted.
func (m *Manager) Identifiers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Records returns all records, sorted by identifier.
func (m *Manager) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Count returns the number of trusted cars.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// persistLocked writes the current records through to the store.
// Callers must hold the write lock.
func (m *Manager) persistLocked() {
	if err := m.store.Save(m.snapshotLocked()); err != nil {
		m.logger.Log(log.NewErrorEvent(log.LayerRegistry, "persisting associated cars", err))
	}
}

// snapshotLocked returns the records as a sorted slice.
// Callers must hold at least the read lock.
func (m *Manager) snapshotLocked() []Record {
	out := make([]Record, 0, len(m.records))
	for id, name := range m.records {
		out = append(out, Record{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
