package network

import "context"

// Store persists the network catalog.
type Store interface {
	Create(ctx context.Context, n *Network) error
	Get(ctx context.Context, id string) (*Network, error)
	GetByName(ctx context.Context, name string) (*Network, error)
	List(ctx context.Context) ([]*Network, error)
}
