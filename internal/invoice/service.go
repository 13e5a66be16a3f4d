package invoice

import (
	"context"
	"time"

	"github.com/rolegate/rolegate/internal/idgen"
	"github.com/rolegate/rolegate/internal/logging"
	"github.com/rolegate/rolegate/internal/metrics"
)

// Service issues and redeems invoices.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates an invoice service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Issue creates (or refreshes) the invoice for a purchase slot and returns
// it with a newly minted token.
func (s *Service) Issue(ctx context.Context, principalID, tenantID, roleID string, durationSec int64) (*Invoice, error) {
	now := s.now()
	inv := &Invoice{
		ID:          idgen.WithPrefix("inv_"),
		Token:       idgen.New(),
		PrincipalID: principalID,
		TenantID:    tenantID,
		RoleID:      roleID,
		DurationSec: durationSec,
		CreatedAt:   now,
	}
	stored, err := s.store.Upsert(ctx, inv, now.Add(FreshTTL), now.Add(RefreshTTL))
	if err != nil {
		return nil, err
	}
	kind := "fresh"
	if stored.ID != inv.ID {
		kind = "refresh"
	}
	metrics.InvoicesIssuedTotal.WithLabelValues(kind).Inc()
	return stored, nil
}

// Lookup returns a live invoice by token.
func (s *Service) Lookup(ctx context.Context, token string) (*Invoice, error) {
	return s.store.GetByToken(ctx, token, s.now())
}

// Redeem validates that a live invoice covers the given purchase.
func (s *Service) Redeem(ctx context.Context, token, principalID, tenantID, roleID string, durationSec int64) (*Invoice, error) {
	inv, err := s.store.GetByToken(ctx, token, s.now())
	if err != nil {
		return nil, err
	}
	if !inv.Covers(principalID, tenantID, roleID, durationSec) {
		return nil, ErrInvoiceMismatch
	}
	return inv, nil
}

// Consume claims an invoice, reporting whether this caller won the claim.
// Under concurrent redemption of the same token exactly one caller sees
// true; a claim on an already-consumed or purged invoice is not an error.
func (s *Service) Consume(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// StartPurge runs a background sweep for expired invoices until the context
// is cancelled.
func (s *Service) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.PurgeExpired(ctx, s.now())
				if err != nil {
					logging.L(ctx).Warn("invoice purge failed", "error", err)
					continue
				}
				if n > 0 {
					logging.L(ctx).Debug("purged expired invoices", "count", n)
				}
			}
		}
	}()
}
