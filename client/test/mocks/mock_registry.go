package mocks

import (
	"context"
	"sync"
	"time"
)

// MockRegistry is an in-memory accesskey.Registry. Keys never expire.
type MockRegistry struct {
	mu          sync.Mutex
	keys        map[string]time.Duration
	RegisterErr error
}

func (m *MockRegistry) Register(ctx context.Context, key string, ttl time.Duration) error {
	if m.RegisterErr != nil {
		return m.RegisterErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]time.Duration)
	}
	m.keys[key] = ttl
	return nil
}

func (m *MockRegistry) Consume(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	delete(m.keys, key)
	return ok, nil
}

// Outstanding returns how many registered keys were not consumed yet.
func (m *MockRegistry) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
