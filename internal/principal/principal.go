// Package principal manages Discord users and their custodial wallets.
//
// Buyers never bring their own wallet: the first time a Discord user touches
// the platform a keypair is minted for each rail kind and held in custody,
// private keys encrypted at rest.
package principal

import (
	"errors"
	"time"
)

// Errors
var (
	ErrPrincipalNotFound = errors.New("principal: not found")
	ErrWalletNotFound    = errors.New("principal: wallet not found")
	ErrDiscordIDTaken    = errors.New("principal: discord id already registered")
)

// Principal is a Discord user known to the platform.
type Principal struct {
	ID        string    `json:"id"`
	DiscordID string    `json:"discordId"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Wallet is a custodial keypair bound to a principal and a network.
// EncryptedKey is the AES-GCM sealed private key; it never leaves the
// store unencrypted.
type Wallet struct {
	ID           string    `json:"id"`
	PrincipalID  string    `json:"principalId"`
	NetworkID    string    `json:"networkId"`
	PublicKey    string    `json:"publicKey"`
	EncryptedKey []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
