package grant

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]*Grant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]*Grant)}
}

func (s *MemoryStore) Create(_ context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.grants[g.ID] = copyGrant(g)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[id]
	if !ok {
		return nil, ErrGrantNotFound
	}
	return copyGrant(g), nil
}

func (s *MemoryStore) ListByPrincipal(_ context.Context, principalID string) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Grant
	for _, g := range s.grants {
		if g.PrincipalID == principalID {
			out = append(out, copyGrant(g))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Grant
	for _, g := range s.grants {
		if g.TenantID == tenantID {
			out = append(out, copyGrant(g))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(grants []*Grant) {
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].CreatedAt.After(grants[j].CreatedAt)
	})
}

func copyGrant(g *Grant) *Grant {
	cp := *g
	return &cp
}
