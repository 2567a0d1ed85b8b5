package plans

import "time"

func defaultSubscription(now time.Time) Subscription {
	return Subscription{
		Tier:         TierFree,
		Start:        now,
		End:          now.Add(90 * 24 * time.Hour),
		AllowedCVs:   1,
		HasAnalytics: false,
	}
}

// entitlementsFor applies the tier's feature set to a subscription window.
func entitlementsFor(tier string, subscriptionID string, now time.Time) Subscription {
	sub := Subscription{
		Tier:           tier,
		SubscriptionID: subscriptionID,
		Start:          now,
	}
	switch tier {
	case TierPremiumMonthly:
		sub.End = now.Add(30 * 24 * time.Hour)
		sub.AllowedCVs = -1
		sub.HasAnalytics = true
	case TierPremium:
		sub.End = now.Add(365 * 24 * time.Hour)
		sub.AllowedCVs = -1
		sub.HasAnalytics = true
	default:
		sub.Tier = TierFree
		sub.End = now.Add(90 * 24 * time.Hour)
		sub.AllowedCVs = 1
		sub.HasAnalytics = false
	}
	return sub
}
