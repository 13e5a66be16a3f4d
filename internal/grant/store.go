package grant

import "context"

// Store persists grant records.
type Store interface {
	Create(ctx context.Context, g *Grant) error
	Get(ctx context.Context, id string) (*Grant, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]*Grant, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Grant, error)
}
