// Package tenant manages the Discord guilds that sell role access.
package tenant

import (
	"errors"
	"time"
)

// Errors
var (
	ErrTenantNotFound      = errors.New("tenant: not found")
	ErrGuildTaken          = errors.New("tenant: guild already registered")
	ErrSubscriptionExpired = errors.New("tenant: subscription expired")
	ErrQuotaExhausted      = errors.New("tenant: transaction quota exhausted")
)

// UnlimitedTxns marks a tenant with no transaction quota.
const UnlimitedTxns int64 = -1

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is a Discord guild registered on the platform. Each tenant
// configures where settled funds land and carries a platform subscription
// that caps how many paid grants it may process.
type Tenant struct {
	ID      string `json:"id"`
	GuildID string `json:"guildId"`
	Name    string `json:"name"`

	// ReceiverEVMAddress and ReceiverSolanaAddress are where role
	// payments are directed, per rail kind.
	ReceiverEVMAddress    string `json:"receiverEvmAddress,omitempty"`
	ReceiverSolanaAddress string `json:"receiverSolanaAddress,omitempty"`

	SubscriptionExpiresAt time.Time `json:"subscriptionExpiresAt"`

	// RemainingTxns counts paid grants the subscription still covers.
	// UnlimitedTxns (-1) disables the cap.
	RemainingTxns int64 `json:"remainingTxns"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubscriptionActive reports whether the tenant's subscription covers now.
func (t *Tenant) SubscriptionActive(now time.Time) bool {
	return now.Before(t.SubscriptionExpiresAt)
}

// HasQuota reports whether at least one more paid grant is covered.
func (t *Tenant) HasQuota() bool {
	return t.RemainingTxns == UnlimitedTxns || t.RemainingTxns > 0
}
