package role

import "context"

// Store persists role listings.
type Store interface {
	Create(ctx context.Context, r *Role) error
	Get(ctx context.Context, id string) (*Role, error)
	GetByDiscordRole(ctx context.Context, tenantID, discordRoleID string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
}
