// Package plans tracks per-user subscriptions and the entitlements derived
// from them: how many CVs a user may keep and whether analytics is included.
package plans

import "time"

const (
	TierFree           = "free"
	TierPremiumMonthly = "premium-monthly"
	TierPremium        = "premium"
)

// Subscription is a user's current plan snapshot. AllowedCVs of -1 means
// unlimited.
type Subscription struct {
	Tier           string    `json:"tier"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllowedCVs     int       `json:"allowedCVs"`
	HasAnalytics   bool      `json:"hasAnalytics"`
}

// Expired reports whether the subscription window has passed.
func (s Subscription) Expired(now time.Time) bool {
	return !s.End.IsZero() && now.After(s.End)
}
