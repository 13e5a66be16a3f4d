package tenant

import "time"

// Plan identifies a subscription tier for a guild.
type Plan string

const (
	PlanStarter   Plan = "starter"
	PlanGrowth    Plan = "growth"
	PlanUnlimited Plan = "unlimited"
)

// PlanTerms describes what a renewal at a given tier buys.
type PlanTerms struct {
	Duration time.Duration
	Txns     int64 // UnlimitedTxns for no cap
}

// TermsForPlan returns the renewal terms for a plan. Unknown plans fall
// back to starter.
func TermsForPlan(p Plan) PlanTerms {
	switch p {
	case PlanGrowth:
		return PlanTerms{Duration: 30 * 24 * time.Hour, Txns: 5000}
	case PlanUnlimited:
		return PlanTerms{Duration: 30 * 24 * time.Hour, Txns: UnlimitedTxns}
	default:
		return PlanTerms{Duration: 30 * 24 * time.Hour, Txns: 500}
	}
}

// ValidPlan reports whether p is a known plan.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanStarter, PlanGrowth, PlanUnlimited:
		return true
	}
	return false
}
