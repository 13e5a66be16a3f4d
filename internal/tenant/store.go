package tenant

import (
	"context"
	"time"
)

// Store persists tenant data.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	GetByGuild(ctx context.Context, guildID string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	Update(ctx context.Context, t *Tenant) error

	// ConsumeTxn atomically decrements the tenant's remaining transaction
	// quota. Returns ErrQuotaExhausted when the quota is zero; tenants on
	// UnlimitedTxns are never decremented. The decrement is advisory: it is
	// not rolled back if the grant later fails.
	ConsumeTxn(ctx context.Context, id string) error

	// ExtendSubscription moves the expiry forward and tops up the quota.
	ExtendSubscription(ctx context.Context, id string, until time.Time, txns int64) error
}
