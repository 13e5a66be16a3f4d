// Package role manages purchasable Discord roles and their pricing.
package role

import (
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/rolegate/rolegate/internal/usdc"
)

// Errors
var (
	ErrRoleNotFound    = errors.New("role: not found")
	ErrRoleTaken       = errors.New("role: discord role already listed")
	ErrInvalidDuration = errors.New("role: duration not offered for this role")
	ErrNoDurations     = errors.New("role: at least one duration required")
)

// Role is a purchasable Discord role listing. The daily rate is in USDC
// smallest units; Durations is the closed set of purchase lengths offered,
// in seconds.
type Role struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	DiscordRoleID string `json:"discordRoleId"`

	// ChannelID is the channel the role unlocks, used for the resource URL
	// in payment requirements.
	ChannelID string `json:"channelId,omitempty"`

	Name string `json:"name"`

	DailyRateAtomic int64   `json:"dailyRateAtomic,string"`
	Durations       []int64 `json:"durations"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeDurations sorts, deduplicates, and drops non-positive entries.
// Returns ErrNoDurations when nothing survives.
func NormalizeDurations(durations []int64) ([]int64, error) {
	seen := make(map[int64]bool, len(durations))
	out := make([]int64, 0, len(durations))
	for _, d := range durations {
		if d <= 0 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, ErrNoDurations
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Offers reports whether the role sells the given duration.
func (r *Role) Offers(durationSec int64) bool {
	for _, d := range r.Durations {
		if d == durationSec {
			return true
		}
	}
	return false
}

// PriceFor returns the charge in USDC smallest units for a duration,
// prorated from the daily rate and rounded down. Durations outside the
// role's offer set are rejected.
func (r *Role) PriceFor(durationSec int64) (*big.Int, error) {
	if !r.Offers(durationSec) {
		return nil, ErrInvalidDuration
	}
	return usdc.Prorate(big.NewInt(r.DailyRateAtomic), durationSec), nil
}
