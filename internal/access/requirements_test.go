package access

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/network"
)

func baseNetwork() *network.Network {
	return &network.Network{
		ID:            "net_base",
		Name:          "base",
		Kind:          network.KindEVM,
		ChainID:       8453,
		USDCAsset:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	}
}

func TestBuildRequirements(t *testing.T) {
	reqmt, err := BuildRequirements(baseNetwork(), big.NewInt(2_500_000),
		testReceiver, "https://api.example.com/v1/access", "VIP role for 1 day")
	require.NoError(t, err)

	assert.Equal(t, "exact", reqmt.Scheme)
	assert.Equal(t, "base", reqmt.Network)
	assert.Equal(t, "2500000", reqmt.MaxAmountRequired)
	assert.Equal(t, testReceiver, reqmt.PayTo)
	assert.Equal(t, 60, reqmt.MaxTimeoutSeconds)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", reqmt.Asset)
	assert.Equal(t, "application/json", reqmt.MimeType)
	assert.Equal(t, "USD Coin", reqmt.Extra.Name)
	assert.Equal(t, "2", reqmt.Extra.Version)
}

func TestBuildRequirements_ConfigErrors(t *testing.T) {
	amount := big.NewInt(1)

	t.Run("non-EVM rail", func(t *testing.T) {
		net := baseNetwork()
		net.Kind = network.KindSolana
		_, err := BuildRequirements(net, amount, testReceiver, "r", "d")
		assert.ErrorIs(t, err, ErrUnsupportedPrice)
	})

	t.Run("missing asset", func(t *testing.T) {
		net := baseNetwork()
		net.USDCAsset = ""
		_, err := BuildRequirements(net, amount, testReceiver, "r", "d")
		assert.ErrorIs(t, err, ErrUnsupportedPrice)
	})

	t.Run("missing receiver", func(t *testing.T) {
		_, err := BuildRequirements(baseNetwork(), amount, "", "r", "d")
		assert.ErrorIs(t, err, ErrUnsupportedPrice)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := BuildRequirements(baseNetwork(), big.NewInt(0), testReceiver, "r", "d")
		assert.ErrorIs(t, err, ErrUnsupportedPrice)
	})
}

func TestDescribePurchase(t *testing.T) {
	assert.Equal(t, "VIP role for 1 day (1.000000 USDC)",
		describePurchase("VIP", 86400, big.NewInt(1_000_000)))
	assert.Equal(t, "VIP role for 7 days (7.000000 USDC)",
		describePurchase("VIP", 604800, big.NewInt(7_000_000)))
	assert.Equal(t, "VIP role for 3600 seconds (0.041666 USDC)",
		describePurchase("VIP", 3600, big.NewInt(41_666)))
}
