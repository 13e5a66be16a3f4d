package invoice

import (
	"context"
	"time"
)

// Store persists invoices.
type Store interface {
	// Upsert creates or replaces the invoice for a (principal, tenant, role)
	// purchase slot and returns the stored row. A new slot expires at
	// freshUntil; re-requesting an existing slot rotates the token and
	// shortens the window to refreshUntil.
	Upsert(ctx context.Context, inv *Invoice, freshUntil, refreshUntil time.Time) (*Invoice, error)

	// GetByToken returns a non-expired invoice. Expired rows read as absent.
	GetByToken(ctx context.Context, token string, now time.Time) (*Invoice, error)

	// Delete removes an invoice by ID, reporting whether a row was removed.
	// Missing rows are not an error; concurrent deleters see exactly one true.
	Delete(ctx context.Context, id string) (bool, error)

	// PurgeExpired removes rows whose window has passed, returning the count.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
