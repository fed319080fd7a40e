package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xabinapal/esdsn/internal/profile"
)

// MemoryStore keeps profiles in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]profile.Profile)}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, name string) (profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	if !ok {
		return profile.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, r profile.Resolved) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.IsZero() {
		return errUnresolved
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[r.Name()] = r.Profile()
	return nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[name]
	return ok, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(m.profiles, name)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
