package network

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory network store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	networks map[string]*Network // by ID
	names    map[string]string   // name → ID
}

// NewMemoryStore creates an in-memory store pre-seeded with Defaults.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		networks: make(map[string]*Network),
		names:    make(map[string]string),
	}
	for _, n := range Defaults() {
		m.networks[n.ID] = n
		m.names[n.Name] = n.ID
	}
	return m
}

func (m *MemoryStore) Create(_ context.Context, n *Network) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.names[n.Name]; exists {
		return ErrNameTaken
	}

	cp := *n
	m.networks[n.ID] = &cp
	m.names[n.Name] = n.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.networks[id]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *MemoryStore) GetByName(_ context.Context, name string) (*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.names[name]
	if !ok {
		return nil, ErrNetworkNotFound
	}
	cp := *m.networks[id]
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Network, 0, len(m.networks))
	for _, n := range m.networks {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
