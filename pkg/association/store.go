package association

// Record is one associated car: its stable identifier and an optional
// human-readable name. Identifiers are globally unique within a store.
type Record struct {
	// ID is the verified car identifier resolved by a handshake.
	ID string `json:"id"`

	// Name is the user-visible name, empty if never set.
	Name string `json:"name,omitempty"`
}

// Store is the persistence boundary for associated-car records. The
// manager depends only on this read/write contract, never on a concrete
// storage format or a process-wide singleton.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Load returns all persisted records. A store with no prior state
	// returns an empty slice, not an error.
	Load() ([]Record, error)

	// Save replaces the persisted records with the given set.
	Save(records []Record) error
}
