package access

import (
	"fmt"
	"math/big"

	"github.com/rolegate/rolegate/internal/network"
	"github.com/rolegate/rolegate/internal/usdc"
	"github.com/rolegate/rolegate/internal/x402"
)

// MaxTimeoutSeconds is how long a challenge stays payable. Clients are
// expected to abandon a stale challenge and request a fresh one.
const MaxTimeoutSeconds = 60

// BuildRequirements constructs the x402 challenge for a priced purchase on
// one network. An incomplete network or tenant configuration (no asset, no
// receiver) is an operator error, not a client error.
func BuildRequirements(net *network.Network, amount *big.Int, payTo, resource, description string) (*x402.PaymentRequirements, error) {
	if !net.IsEVM() {
		return nil, fmt.Errorf("%w: %s is not an EVM rail", ErrUnsupportedPrice, net.Name)
	}
	if net.USDCAsset == "" || net.EIP712Name == "" {
		return nil, fmt.Errorf("%w: no USDC asset configured for %s", ErrUnsupportedPrice, net.Name)
	}
	if payTo == "" {
		return nil, fmt.Errorf("%w: tenant has no receiver address for %s", ErrUnsupportedPrice, net.Name)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrUnsupportedPrice)
	}

	return &x402.PaymentRequirements{
		Scheme:            "exact",
		Network:           net.Name,
		MaxAmountRequired: amount.String(),
		Resource:          resource,
		Description:       description,
		MimeType:          "application/json",
		PayTo:             payTo,
		MaxTimeoutSeconds: MaxTimeoutSeconds,
		Asset:             net.USDCAsset,
		OutputSchema: x402.OutputSchema{
			Input:  x402.SchemaInput{Type: "http", Method: "POST"},
			Output: x402.SchemaOutput{Success: x402.SchemaField{Type: "boolean", Description: "access granted"}},
		},
		Extra: x402.ExtraDomain{Name: net.EIP712Name, Version: net.EIP712Version},
	}, nil
}

// describePurchase renders the human-readable challenge description, e.g.
// "VIP role for 7 days (2.500000 USDC)".
func describePurchase(roleName string, durationSec int64, amount *big.Int) string {
	days := durationSec / usdc.SecondsPerDay
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	if days == 0 {
		return fmt.Sprintf("%s role for %d seconds (%s USDC)", roleName, durationSec, usdc.Format(amount))
	}
	return fmt.Sprintf("%s role for %d %s (%s USDC)", roleName, days, unit, usdc.Format(amount))
}
