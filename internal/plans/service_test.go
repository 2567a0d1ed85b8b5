package plans

import (
	"context"
	"testing"
	"time"
)

func TestGetDefaultsToFreeTier(t *testing.T) {
	svc := NewService()

	sub, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Tier != TierFree {
		t.Fatalf("tier = %q, want %q", sub.Tier, TierFree)
	}
	if sub.AllowedCVs != 1 {
		t.Fatalf("allowedCVs = %d, want 1", sub.AllowedCVs)
	}
	if sub.HasAnalytics {
		t.Fatal("free tier should not include analytics")
	}
	if sub.End.Before(time.Now().UTC().Add(89 * 24 * time.Hour)) {
		t.Fatalf("free tier window too short: ends %v", sub.End)
	}
}

func TestUpdateSubscriptionPremium(t *testing.T) {
	svc := NewService()

	sub, err := svc.UpdateSubscription(context.Background(), "user-1", TierPremiumMonthly, "sub_123")
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if sub.AllowedCVs != -1 {
		t.Fatalf("allowedCVs = %d, want -1", sub.AllowedCVs)
	}
	if !sub.HasAnalytics {
		t.Fatal("premium tier should include analytics")
	}

	allowed, err := svc.AllowedCVs(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AllowedCVs: %v", err)
	}
	if allowed != -1 {
		t.Fatalf("AllowedCVs = %d, want -1", allowed)
	}
	has, err := svc.HasAnalytics(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("HasAnalytics: %v", err)
	}
	if !has {
		t.Fatal("HasAnalytics = false, want true")
	}
}

func TestUpdateSubscriptionUnknownTier(t *testing.T) {
	svc := NewService()

	if _, err := svc.UpdateSubscription(context.Background(), "user-1", "platinum", ""); err != ErrUnknownTier {
		t.Fatalf("err = %v, want ErrUnknownTier", err)
	}
}

func TestExpiredPaidTierDowngrades(t *testing.T) {
	svc := NewService()

	expired := entitlementsFor(TierPremiumMonthly, "sub_old", time.Now().UTC().Add(-60*24*time.Hour))
	if err := svc.store.Set(context.Background(), "user-1", expired); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sub, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Tier != TierFree {
		t.Fatalf("tier = %q, want downgrade to %q", sub.Tier, TierFree)
	}
	if sub.AllowedCVs != 1 {
		t.Fatalf("allowedCVs = %d, want 1", sub.AllowedCVs)
	}
}
