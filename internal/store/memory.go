package store

import (
	"context"
	"sync"
)

// MemCheckpointStore is a map-backed CheckpointStore for tests and one-shot
// CLI runs that have no database to persist progress into.
type MemCheckpointStore struct {
	mu  sync.Mutex
	cps map[string]Checkpoint
}

func NewMemCheckpointStore() *MemCheckpointStore {
	return &MemCheckpointStore{cps: make(map[string]Checkpoint)}
}

func (m *MemCheckpointStore) Load(_ context.Context, key string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.cps[key]
	if !ok {
		return nil, nil
	}
	out := cp
	out.Order = append([]string(nil), cp.Order...)
	return &out, nil
}

func (m *MemCheckpointStore) Save(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *cp
	stored.Order = append([]string(nil), cp.Order...)
	m.cps[cp.Key] = stored
	return nil
}

func (m *MemCheckpointStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cps, key)
	return nil
}

var _ CheckpointStore = (*MemCheckpointStore)(nil)
