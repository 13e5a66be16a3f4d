// Package network catalogs the payment rails a deployment accepts.
package network

import (
	"errors"
)

// Errors
var (
	ErrNetworkNotFound = errors.New("network: not found")
	ErrNameTaken       = errors.New("network: name already registered")
)

// Kind distinguishes rails by signing model.
type Kind string

const (
	KindEVM    Kind = "evm"
	KindSolana Kind = "solana"
)

// Network describes one payment rail and its USDC asset.
type Network struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	ChainID int64  `json:"chainId,omitempty"` // EVM only

	// USDCAsset is the USDC contract address (EVM) or mint address (Solana).
	USDCAsset string `json:"usdcAsset"`

	// EIP712Name and EIP712Version form the EIP-3009 signing domain of the
	// network's USDC deployment. Empty on non-EVM rails.
	EIP712Name    string `json:"eip712Name,omitempty"`
	EIP712Version string `json:"eip712Version,omitempty"`

	RPCURL string `json:"rpcUrl,omitempty"`

	// FreeRail marks rails where settlement is not charged against the
	// tenant's transaction quota and payment collection is waived.
	FreeRail bool `json:"freeRail"`
}

// IsEVM reports whether the network uses EVM addresses and EIP-3009.
func (n *Network) IsEVM() bool { return n.Kind == KindEVM }

// Defaults returns the built-in network catalog. Deployments may add or
// override rows via the store; these cover the rails USDC ships on.
// Contract and mint addresses are Circle's official deployments.
func Defaults() []*Network {
	return []*Network{
		{
			ID:            "net_base",
			Name:          "base",
			Kind:          KindEVM,
			ChainID:       8453,
			USDCAsset:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			EIP712Name:    "USD Coin",
			EIP712Version: "2",
		},
		{
			ID:            "net_base_sepolia",
			Name:          "base-sepolia",
			Kind:          KindEVM,
			ChainID:       84532,
			USDCAsset:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			EIP712Name:    "USDC",
			EIP712Version: "2",
		},
		{
			ID:            "net_avalanche",
			Name:          "avalanche",
			Kind:          KindEVM,
			ChainID:       43114,
			USDCAsset:     "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			EIP712Name:    "USD Coin",
			EIP712Version: "2",
		},
		{
			ID:        "net_solana",
			Name:      "solana",
			Kind:      KindSolana,
			USDCAsset: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			FreeRail:  true,
		},
		{
			ID:        "net_solana_devnet",
			Name:      "solana-devnet",
			Kind:      KindSolana,
			USDCAsset: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
			FreeRail:  true,
		},
	}
}
