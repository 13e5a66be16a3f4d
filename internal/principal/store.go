package principal

import "context"

// Store persists principals and their custodial wallets.
type Store interface {
	Create(ctx context.Context, p *Principal) error
	Get(ctx context.Context, id string) (*Principal, error)
	GetByDiscordID(ctx context.Context, discordID string) (*Principal, error)

	CreateWallet(ctx context.Context, w *Wallet) error
	GetWallet(ctx context.Context, principalID, networkID string) (*Wallet, error)
	ListWallets(ctx context.Context, principalID string) ([]*Wallet, error)
}
