package invoice

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory invoice store for demo/development.
type MemoryStore struct {
	mu       sync.Mutex
	invoices map[string]*Invoice // by ID
	slots    map[string]string   // principal/tenant/role → ID
	tokens   map[string]string   // token → ID
}

// NewMemoryStore creates a new in-memory invoice store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[string]*Invoice),
		slots:    make(map[string]string),
		tokens:   make(map[string]string),
	}
}

func slotKey(principalID, tenantID, roleID string) string {
	return principalID + "/" + tenantID + "/" + roleID
}

func (m *MemoryStore) Upsert(_ context.Context, inv *Invoice, freshUntil, refreshUntil time.Time) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := slotKey(inv.PrincipalID, inv.TenantID, inv.RoleID)
	cp := *inv

	if existingID, ok := m.slots[slot]; ok {
		existing := m.invoices[existingID]
		delete(m.tokens, existing.Token)

		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
		cp.ExpiresOn = refreshUntil
	} else {
		cp.ExpiresOn = freshUntil
	}

	m.invoices[cp.ID] = &cp
	m.slots[slot] = cp.ID
	m.tokens[cp.Token] = cp.ID

	out := cp
	return &out, nil
}

func (m *MemoryStore) GetByToken(_ context.Context, token string, now time.Time) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.tokens[token]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	inv := m.invoices[id]
	if inv.Expired(now) {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return false, nil
	}
	delete(m.tokens, inv.Token)
	delete(m.slots, slotKey(inv.PrincipalID, inv.TenantID, inv.RoleID))
	delete(m.invoices, id)
	return true, nil
}

func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, inv := range m.invoices {
		if inv.Expired(now) {
			delete(m.tokens, inv.Token)
			delete(m.slots, slotKey(inv.PrincipalID, inv.TenantID, inv.RoleID))
			delete(m.invoices, id)
			purged++
		}
	}
	return purged, nil
}

var _ Store = (*MemoryStore)(nil)
