package history

import (
	"time"
)

const day = 24 * time.Hour

// PolicyForever keeps every item.
const PolicyForever = "forever"

// Policy is a named retention window.
type Policy struct {
	ID     string
	Label  string
	Window time.Duration // zero keeps everything
}

// Policies lists the known retention policies, shortest window first.
var Policies = []Policy{
	{ID: "7d", Label: "1 week", Window: 7 * day},
	{ID: "30d", Label: "1 month", Window: 30 * day},
	{ID: "90d", Label: "3 months", Window: 90 * day},
	{ID: "180d", Label: "6 months", Window: 180 * day},
	{ID: "365d", Label: "1 year", Window: 365 * day},
	{ID: PolicyForever, Label: "Forever"},
}

// LookupPolicy returns the policy with the given id.
func LookupPolicy(id string) (Policy, bool) {
	for _, p := range Policies {
		if p.ID == id {
			return p, true
		}
	}
	return Policy{}, false
}

// ApplyRetentionPolicy returns the items that policyID retains at now, in
// their original order. An item is dropped only when its CreatedAt resolves
// to a time strictly before now minus the policy window. Unknown policy ids
// and items without a resolvable CreatedAt are always kept.
func ApplyRetentionPolicy(items []Item, policyID string, now time.Time) []Item {
	policy, ok := LookupPolicy(policyID)
	if !ok || policy.Window <= 0 {
		return items
	}
	cutoff := now.Add(-policy.Window)

	kept := make([]Item, 0, len(items))
	for _, it := range items {
		if ts, ok := it.Timestamp(); ok && ts.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}
