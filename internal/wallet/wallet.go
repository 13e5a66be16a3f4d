// Package wallet reads on-chain USDC state for custodial addresses.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rolegate/rolegate/internal/network"
)

// Errors
var (
	ErrInvalidAddress  = errors.New("wallet: invalid address")
	ErrNoRPC           = errors.New("wallet: network has no RPC URL")
	ErrRPCConnection   = errors.New("wallet: RPC connection failed")
	ErrUnsupportedRail = errors.New("wallet: rail kind not supported")
)

// ERC20 minimal ABI for balanceOf
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// ContractCaller is the slice of the ethclient surface the reader needs.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a ContractCaller for an RPC endpoint. Swapped in tests.
type Dialer func(rpcURL string) (ContractCaller, error)

func ethDialer(rpcURL string) (ContractCaller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
	}
	return client, nil
}

// Reader reads USDC balances across the network catalog. Connections are
// dialed lazily per network and reused.
type Reader struct {
	dial    Dialer
	usdcABI abi.ABI

	mu      sync.Mutex
	clients map[string]ContractCaller // by network ID
}

// NewReader creates a balance reader using real RPC connections.
func NewReader() (*Reader, error) {
	return newReader(ethDialer)
}

// NewReaderWithDialer creates a reader with a custom dialer (for testing).
func NewReaderWithDialer(dial Dialer) (*Reader, error) {
	return newReader(dial)
}

func newReader(dial Dialer) (*Reader, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("wallet: parse ERC20 ABI: %w", err)
	}
	return &Reader{
		dial:    dial,
		usdcABI: parsedABI,
		clients: make(map[string]ContractCaller),
	}, nil
}

// Balance returns the USDC balance of an address on an EVM network, in
// smallest units.
func (r *Reader) Balance(ctx context.Context, net *network.Network, address string) (*big.Int, error) {
	if !net.IsEVM() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRail, net.Kind)
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	client, err := r.client(net)
	if err != nil {
		return nil, err
	}

	data, err := r.usdcABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("wallet: pack balanceOf: %w", err)
	}

	contract := common.HexToAddress(net.USDCAsset)
	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
	}

	var out []interface{}
	if out, err = r.usdcABI.Unpack("balanceOf", result); err != nil {
		return nil, fmt.Errorf("wallet: unpack balanceOf: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("wallet: unexpected balanceOf return type")
	}
	return balance, nil
}

func (r *Reader) client(net *network.Network) (ContractCaller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[net.ID]; ok {
		return c, nil
	}
	if net.RPCURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoRPC, net.Name)
	}
	c, err := r.dial(net.RPCURL)
	if err != nil {
		return nil, err
	}
	r.clients[net.ID] = c
	return c, nil
}

// Close releases all RPC connections.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = make(map[string]ContractCaller)
}
