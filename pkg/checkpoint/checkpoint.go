// Package checkpoint saves and fetches numbered, immutable snapshots of
// the ordered shape list. Store is an interface so callers may swap in a
// filesystem- or database-backed implementation without touching the
// server state manager. MemoryStore is the in-process implementation.
package checkpoint

import (
	"fmt"
	"sync"

	"github.com/collabwhiteboard/cwse/internal/errs"
	"github.com/collabwhiteboard/cwse/pkg/shape"
)

// Store is the abstract snapshot contract checkpoint persistence media
// must satisfy.
type Store interface {
	// Save assigns the next monotonically increasing checkpoint number to
	// shapes and persists it, returning that number.
	Save(shapes []shape.BoardShape) (int, error)

	// Fetch returns a deep copy of the shapes stored under number k, or
	// errs.ErrUnknownCheckpoint if k was never assigned.
	Fetch(k int) ([]shape.BoardShape, error)

	// Count returns how many checkpoints have been saved.
	Count() int
}

// MemoryStore is an in-memory Store keyed by checkpoint number, numbering
// from 1.
type MemoryStore struct {
	mu   sync.Mutex
	next int
	data map[int][]shape.BoardShape
}

// NewMemoryStore returns an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int][]shape.BoardShape)}
}

// Save implements Store.
func (m *MemoryStore) Save(shapes []shape.BoardShape) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.data[m.next] = shape.CloneSlice(shapes)
	return m.next, nil
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(k int) ([]shape.BoardShape, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shapes, ok := m.data[k]
	if !ok {
		return nil, fmt.Errorf("checkpoint %d: %w", k, errs.ErrUnknownCheckpoint)
	}
	return shape.CloneSlice(shapes), nil
}

// Count implements Store.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
