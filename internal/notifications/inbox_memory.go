package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/shopadmin/internal/cache"
)

// MemoryInbox keeps toasts in process; unread toasts expire with the cache TTL.
type MemoryInbox struct {
	mu sync.Mutex
	c  *cache.Cache
}

func NewMemoryInbox(ttl time.Duration) *MemoryInbox {
	return &MemoryInbox{c: cache.New(ttl)}
}

func (m *MemoryInbox) Push(_ context.Context, id string, t Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []Toast
	if v, ok := m.c.Get(id); ok {
		list = v.([]Toast)
	}
	next := make([]Toast, 0, len(list)+1)
	next = append(next, list...)
	m.c.Set(id, append(next, t))
	return nil
}

func (m *MemoryInbox) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.c.Delete(id)
	return nil
}

func (m *MemoryInbox) Drain(_ context.Context, id string) ([]Toast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Take(id)
	if !ok {
		return nil, nil
	}
	return v.([]Toast), nil
}
