package session

import (
	"context"
	"sync"
)

// MemoryPersister keeps sessions in process. Used in dev and tests.
type MemoryPersister struct {
	mu    sync.RWMutex
	items map[string]Session
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{items: make(map[string]Session)}
}

func (m *MemoryPersister) Load(_ context.Context, key string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.items[key]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryPersister) Save(_ context.Context, key string, s Session) error {
	m.mu.Lock()
	m.items[key] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryPersister) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
