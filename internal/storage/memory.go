package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local KV used for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	revision int64
}

var _ KV = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, _, err := m.GetRevision(ctx, key)
	return v, err
}

func (m *MemoryStore) GetRevision(_ context.Context, key string) ([]byte, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return append([]byte(nil), e.value...), e.revision, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryEntry{value: append([]byte(nil), value...), revision: m.items[key].revision + 1}
	return nil
}

func (m *MemoryStore) SetIfRevision(_ context.Context, key string, value []byte, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current := m.items[key].revision; current != expected {
		return current, ErrRevisionConflict
	}
	next := expected + 1
	m.items[key] = memoryEntry{value: append([]byte(nil), value...), revision: next}
	return next, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
