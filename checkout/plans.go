// Package checkout maps completed payments to membership grants. The
// client only ever receives a checkout link; grants are applied
// server-side from signed webhook events, and the client learns about
// them through the profile store push.
package checkout

import (
	"time"

	"github.com/freevoice-app/memberkit/entitlement"
)

// Plan binds a purchasable plan to a tier and a grant duration.
type Plan struct {
	ID       string
	Tier     entitlement.Tier
	Duration time.Duration
	Link     string
}

// PlanTable resolves plan ids from checkout metadata.
type PlanTable struct {
	plans map[string]Plan
}

// DefaultPlans returns the product's plan set: weekly, monthly, yearly
// and the ultra add-on.
func DefaultPlans() *PlanTable {
	return NewPlanTable([]Plan{
		{ID: "weekly", Tier: entitlement.TierWeekly, Duration: 168 * time.Hour},
		{ID: "monthly", Tier: entitlement.TierMonthly, Duration: 720 * time.Hour},
		{ID: "yearly", Tier: entitlement.TierYearly, Duration: 8760 * time.Hour},
		{ID: "ultra_addon", Tier: entitlement.TierUltra, Duration: 720 * time.Hour},
	})
}

// NewPlanTable builds a table from explicit plans (e.g., from config).
func NewPlanTable(plans []Plan) *PlanTable {
	t := &PlanTable{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		t.plans[p.ID] = p
	}
	return t
}

// Lookup returns the plan for id.
func (t *PlanTable) Lookup(id string) (Plan, bool) {
	p, ok := t.plans[id]
	return p, ok
}

// Links returns plan id -> checkout link for every plan that has one.
func (t *PlanTable) Links() map[string]string {
	out := make(map[string]string)
	for id, p := range t.plans {
		if p.Link != "" {
			out[id] = p.Link
		}
	}
	return out
}

// ExpiryFor computes the grant expiry for a plan purchased at now.
func (p Plan) ExpiryFor(now time.Time) int64 {
	return now.Add(p.Duration).UnixMilli()
}
