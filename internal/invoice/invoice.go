// Package invoice issues short-lived purchase intents.
//
// An invoice pre-commits a (principal, tenant, role, duration) purchase so a
// checkout surface can hand the buyer a link. Invoices are single-use and
// keyed by an unguessable token; an expired invoice is indistinguishable
// from one that never existed.
package invoice

import (
	"errors"
	"time"
)

// Errors
var (
	ErrInvoiceNotFound = errors.New("invoice: not found")
	ErrInvoiceMismatch = errors.New("invoice: does not cover this purchase")
)

// Expiry windows. A fresh invoice gets the longer window; re-requesting an
// invoice for the same purchase rotates the token and shortens the fuse.
const (
	FreshTTL   = 5 * time.Minute
	RefreshTTL = 60 * time.Second
)

// Invoice is a pending purchase intent.
type Invoice struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	PrincipalID string    `json:"principalId"`
	TenantID    string    `json:"tenantId"`
	RoleID      string    `json:"roleId"`
	DurationSec int64     `json:"durationSec"`
	ExpiresOn   time.Time `json:"expiresOn"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Expired reports whether the invoice is past its window.
func (i *Invoice) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresOn)
}

// Covers reports whether the invoice pre-commits exactly this purchase.
func (i *Invoice) Covers(principalID, tenantID, roleID string, durationSec int64) bool {
	return i.PrincipalID == principalID &&
		i.TenantID == tenantID &&
		i.RoleID == roleID &&
		i.DurationSec == durationSec
}
