// Package platform delivers granted entitlements to the chat platform.
// The engine talks to the Granter interface; the Discord implementation
// lives alongside it, and tests substitute fakes.
package platform

import (
	"context"
	"errors"
)

var (
	ErrUnavailable    = errors.New("platform: gateway not connected")
	ErrMemberNotFound = errors.New("platform: member not found")
	ErrRoleNotFound   = errors.New("platform: role not found")
)

// Granter assigns a role to a guild member. Implementations must be safe
// for concurrent use.
type Granter interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	Ready() bool
}
