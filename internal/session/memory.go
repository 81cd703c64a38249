package session

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-process Store guarded by a single mutex, so Flush
// never interleaves with a Get or Put.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, chatID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[chatID], nil
}

func (m *MemoryStore) Put(_ context.Context, chatID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[chatID] = state
	return nil
}

func (m *MemoryStore) Flush(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.states)
	m.states = make(map[string]State)
	return n, nil
}

func (m *MemoryStore) Snapshot(_ context.Context) (map[string]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.states), nil
}
