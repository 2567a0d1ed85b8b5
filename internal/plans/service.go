package plans

import (
	"context"
	"time"
)

type store interface {
	Get(ctx context.Context, userID string) (Subscription, error)
	Set(ctx context.Context, userID string, sub Subscription) error
}

// Service manages subscriptions via an underlying store.
type Service struct {
	store store
}

// NewService constructs a Service with in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Get returns the current subscription for a user, initializing the free tier
// if absent and downgrading expired paid tiers.
func (s *Service) Get(ctx context.Context, userID string) (Subscription, error) {
	return s.store.Get(ctx, userID)
}

// UpdateSubscription moves the user to the given tier, applying the tier's
// entitlements and window.
func (s *Service) UpdateSubscription(ctx context.Context, userID, tier, subscriptionID string) (Subscription, error) {
	switch tier {
	case TierFree, TierPremiumMonthly, TierPremium:
	default:
		return Subscription{}, ErrUnknownTier
	}
	sub := entitlementsFor(tier, subscriptionID, time.Now().UTC())
	if err := s.store.Set(ctx, userID, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// AllowedCVs reports how many CVs the user may keep; negative means unlimited.
func (s *Service) AllowedCVs(ctx context.Context, userID string) (int, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return sub.AllowedCVs, nil
}

// HasAnalytics reports whether the user's tier includes analytics reports.
func (s *Service) HasAnalytics(ctx context.Context, userID string) (bool, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.HasAnalytics, nil
}
