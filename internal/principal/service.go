package principal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rolegate/rolegate/internal/idgen"
	"github.com/rolegate/rolegate/internal/logging"
	"github.com/rolegate/rolegate/internal/network"
)

// Service provisions principals and custodial wallets lazily: the first
// operation that needs a wallet on a given rail creates it.
type Service struct {
	store  Store
	cipher *Cipher
}

// NewService creates a principal service.
func NewService(store Store, cipher *Cipher) *Service {
	return &Service{store: store, cipher: cipher}
}

// Ensure returns the principal for a Discord user, creating it if absent.
func (s *Service) Ensure(ctx context.Context, discordID, username string) (*Principal, error) {
	p, err := s.store.GetByDiscordID(ctx, discordID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPrincipalNotFound) {
		return nil, err
	}

	now := time.Now()
	p = &Principal{
		ID:        idgen.WithPrefix("prn_"),
		DiscordID: discordID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		// Lost a create race; the winner's row is what we want.
		if errors.Is(err, ErrDiscordIDTaken) {
			return s.store.GetByDiscordID(ctx, discordID)
		}
		return nil, err
	}

	logging.L(ctx).Info("principal provisioned", "principal_id", p.ID, "discord_id", discordID)
	return p, nil
}

// EnsureWallet returns the principal's wallet on a network, minting and
// sealing a keypair if none exists yet.
func (s *Service) EnsureWallet(ctx context.Context, p *Principal, net *network.Network) (*Wallet, error) {
	w, err := s.store.GetWallet(ctx, p.ID, net.ID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	kp, err := GenerateKeypair(net.Kind)
	if err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Seal(kp.PrivateKey)
	if err != nil {
		return nil, err
	}

	w = &Wallet{
		ID:           idgen.WithPrefix("wal_"),
		PrincipalID:  p.ID,
		NetworkID:    net.ID,
		PublicKey:    kp.PublicKey,
		EncryptedKey: sealed,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return nil, fmt.Errorf("principal: persist wallet: %w", err)
	}

	// CreateWallet is idempotent on (principal, network); re-read so a
	// concurrent provisioner and we agree on the surviving keypair.
	stored, err := s.store.GetWallet(ctx, p.ID, net.ID)
	if err != nil {
		return nil, err
	}

	logging.L(ctx).Info("custodial wallet provisioned",
		"principal_id", p.ID, "network", net.Name, "public_key", stored.PublicKey)
	return stored, nil
}

// ExportKey decrypts a wallet's private key. Used only by the bot-facing
// key export endpoint behind service auth.
func (s *Service) ExportKey(w *Wallet) (string, error) {
	return s.cipher.Open(w.EncryptedKey)
}

// Wallets lists a principal's wallets.
func (s *Service) Wallets(ctx context.Context, principalID string) ([]*Wallet, error) {
	return s.store.ListWallets(ctx, principalID)
}

// GetByDiscordID looks up a principal without provisioning.
func (s *Service) GetByDiscordID(ctx context.Context, discordID string) (*Principal, error) {
	return s.store.GetByDiscordID(ctx, discordID)
}
