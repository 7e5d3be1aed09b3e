package course

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	trees map[string]*Tree
}

// NewInMemoryStore returns a Store holding decoded trees in memory. It backs
// tests and the single-snapshot mode of the CLI.
func NewInMemoryStore() Store {
	return &memoryStore{trees: map[string]*Tree{}}
}

func (m *memoryStore) Put(ctx context.Context, snap Snapshot) error {
	t, err := snap.Tree()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[snap.CourseID] = t
	return nil
}

func (m *memoryStore) Tree(ctx context.Context, courseID string) (*Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trees[courseID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *memoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.trees))
	for id := range m.trees {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
