// Package grant records delivered role entitlements. A record is written
// after settlement and role assignment both succeed, so the history only
// contains access that was actually granted.
package grant

import (
	"errors"
	"time"
)

var ErrGrantNotFound = errors.New("grant: grant not found")

// Grant is one delivered entitlement: who got which role, for how long,
// and the on-chain transaction that paid for it. Free-rail grants carry
// no transaction hash.
type Grant struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principalId"`
	TenantID    string    `json:"tenantId"`
	RoleID      string    `json:"roleId"`
	NetworkID   string    `json:"networkId"`
	DurationSec int64     `json:"durationSec"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Payer       string    `json:"payer,omitempty"`
	Amount      string    `json:"amount"`
	TxnHash     string    `json:"txnHash,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Active reports whether the entitlement still covers the given instant.
func (g *Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}
