package role

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory role store for demo/development.
type MemoryStore struct {
	mu    sync.RWMutex
	roles map[string]*Role  // by ID
	keys  map[string]string // tenantID+"/"+discordRoleID → ID
}

// NewMemoryStore creates a new in-memory role store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles: make(map[string]*Role),
		keys:  make(map[string]string),
	}
}

func key(tenantID, discordRoleID string) string {
	return tenantID + "/" + discordRoleID
}

func copyRole(r *Role) *Role {
	cp := *r
	cp.Durations = append([]int64(nil), r.Durations...)
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, r *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(r.TenantID, r.DiscordRoleID)
	if _, exists := m.keys[k]; exists {
		return ErrRoleTaken
	}

	m.roles[r.ID] = copyRole(r)
	m.keys[k] = r.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return copyRole(r), nil
}

func (m *MemoryStore) GetByDiscordRole(_ context.Context, tenantID, discordRoleID string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[key(tenantID, discordRoleID)]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return copyRole(m.roles[id]), nil
}

func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Role
	for _, r := range m.roles {
		if r.TenantID == tenantID {
			out = append(out, copyRole(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, r *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roles[r.ID]; !ok {
		return ErrRoleNotFound
	}
	m.roles[r.ID] = copyRole(r)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	delete(m.keys, key(r.TenantID, r.DiscordRoleID))
	delete(m.roles, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
