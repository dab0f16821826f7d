package cartstore

import (
	"context"
	"sync"

	"dronefood-storefront/internal/domain"
)

// Memory keeps carts in process memory. It is used when no database is configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, scope, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[scope][key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Put(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[scope] == nil {
		m.items[scope] = make(map[string]string)
	}
	m.items[scope][key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[scope], key)
	if len(m.items[scope]) == 0 {
		delete(m.items, scope)
	}
	return nil
}
