package principal

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory principal store for demo/development.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*Principal // by ID
	discordIDs map[string]string     // discordID → ID
	wallets    map[string]*Wallet    // principalID+"/"+networkID
}

// NewMemoryStore creates a new in-memory principal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*Principal),
		discordIDs: make(map[string]string),
		wallets:    make(map[string]*Wallet),
	}
}

func walletKey(principalID, networkID string) string {
	return principalID + "/" + networkID
}

func (m *MemoryStore) Create(_ context.Context, p *Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.discordIDs[p.DiscordID]; exists {
		return ErrDiscordIDTaken
	}

	cp := *p
	m.principals[p.ID] = &cp
	m.discordIDs[p.DiscordID] = p.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetByDiscordID(_ context.Context, discordID string) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.discordIDs[discordID]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	cp := *m.principals[id]
	return &cp, nil
}

func (m *MemoryStore) CreateWallet(_ context.Context, w *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *w
	cp.EncryptedKey = append([]byte(nil), w.EncryptedKey...)
	m.wallets[walletKey(w.PrincipalID, w.NetworkID)] = &cp
	return nil
}

func (m *MemoryStore) GetWallet(_ context.Context, principalID, networkID string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wallets[walletKey(principalID, networkID)]
	if !ok {
		return nil, ErrWalletNotFound
	}
	cp := *w
	cp.EncryptedKey = append([]byte(nil), w.EncryptedKey...)
	return &cp, nil
}

func (m *MemoryStore) ListWallets(_ context.Context, principalID string) ([]*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Wallet
	for _, w := range m.wallets {
		if w.PrincipalID == principalID {
			cp := *w
			cp.EncryptedKey = append([]byte(nil), w.EncryptedKey...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NetworkID < out[j].NetworkID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
