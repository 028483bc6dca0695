package maintenance

import (
	"context"
	"sync"
)

// InMemorySettingsStore implements SettingsStore for tests and single-node
// demo mode.
type InMemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{values: make(map[string]string)}
}

func (s *InMemorySettingsStore) Get(_ context.Context, category, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[category+"/"+key], nil
}

func (s *InMemorySettingsStore) Set(_ context.Context, category, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[category+"/"+key] = value
	return nil
}
