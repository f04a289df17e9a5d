package association

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(NewMemoryStore(), nil)
	require.NoError(t, err)
	return m
}

func TestManagerAddAndRename(t *testing.T) {
	m := newTestManager(t)

	m.Add("X", "name")
	assert.True(t, m.IsAssociated("X"))
	assert.Equal(t, 1, m.Count())

	ok := m.Rename("X", "new")
	assert.True(t, ok)

	name, found := m.Name("X")
	require.True(t, found)
	assert.Equal(t, "new", name)
}

func TestManagerRenameAbsent(t *testing.T) {
	m := newTestManager(t)
	m.Add("X", "name")

	ok := m.Rename("Y", "new")
	assert.False(t, ok)

	// No state change
	assert.Equal(t, 1, m.Count())
	assert.False(t, m.IsAssociated("Y"))
	name, _ := m.Name("X")
	assert.Equal(t, "name", name)
}

func TestManagerRemove(t *testing.T) {
	m := newTestManager(t)
	m.Add("X", "name")
	m.Add("Z", "other")

	m.Remove("X")
	assert.NotContains(t, m.Identifiers(), "X")
	assert.Contains(t, m.Identifiers(), "Z")

	// Removing an absent id is a no-op
	m.Remove("X")
	assert.Equal(t, 1, m.Count())
}

func TestManagerAddUpserts(t *testing.T) {
	m := newTestManager(t)
	m.Add("X", "first")
	m.Add("X", "second")

	assert.Equal(t, 1, m.Count())
	name, _ := m.Name("X")
	assert.Equal(t, "second", name)
}

func TestManagerClearAll(t *testing.T) {
	m := newTestManager(t)
	m.Add("A", "")
	m.Add("B", "")
	m.ClearAll()

	assert.Equal(t, 0, m.Count())
	assert.Empty(t, m.Identifiers())
}

func TestManagerRecordsSorted(t *testing.T) {
	m := newTestManager(t)
	m.Add("C", "gamma")
	m.Add("A", "alpha")
	m.Add("B", "beta")

	records := m.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "A", records[0].ID)
	assert.Equal(t, "B", records[1].ID)
	assert.Equal(t, "C", records[2].ID)
}

func TestManagerPersistsThroughStore(t *testing.T) {
	store := NewMemoryStore()

	m1, err := NewManager(store, nil)
	require.NoError(t, err)
	m1.Add("CAR-1", "garage")

	// A new manager over the same store sees the records
	m2, err := NewManager(store, nil)
	require.NoError(t, err)
	assert.True(t, m2.IsAssociated("CAR-1"))
	name, _ := m2.Name("CAR-1")
	assert.Equal(t, "garage", name)
}
