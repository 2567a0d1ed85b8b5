package plans

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed subscription store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Subscription, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Subscription{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	sub, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Subscription{}, err
	}
	if err = tx.Commit(); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

func (s *pgStore) Set(ctx context.Context, userID string, sub Subscription) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, tier, subscription_id, start_date, end_date, allowed_cvs, has_analytics)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
  tier = EXCLUDED.tier,
  subscription_id = EXCLUDED.subscription_id,
  start_date = EXCLUDED.start_date,
  end_date = EXCLUDED.end_date,
  allowed_cvs = EXCLUDED.allowed_cvs,
  has_analytics = EXCLUDED.has_analytics`,
		userID, sub.Tier, nullableString(sub.SubscriptionID), sub.Start, sub.End, sub.AllowedCVs, sub.HasAnalytics)
	return err
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string) (Subscription, error) {
	var sub Subscription
	var subscriptionID sql.NullString
	row := tx.QueryRowContext(ctx, `
SELECT tier, subscription_id, start_date, end_date, allowed_cvs, has_analytics
FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID)
	err := row.Scan(&sub.Tier, &subscriptionID, &sub.Start, &sub.End, &sub.AllowedCVs, &sub.HasAnalytics)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			sub = defaultSubscription(time.Now().UTC())
			if _, err = tx.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, tier, subscription_id, start_date, end_date, allowed_cvs, has_analytics)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				userID, sub.Tier, nullableString(sub.SubscriptionID), sub.Start, sub.End, sub.AllowedCVs, sub.HasAnalytics); err != nil {
				return Subscription{}, err
			}
			return sub, nil
		}
		return Subscription{}, err
	}
	sub.SubscriptionID = subscriptionID.String

	now := time.Now().UTC()
	if sub.Expired(now) && sub.Tier != TierFree {
		sub = defaultSubscription(now)
		if _, err = tx.ExecContext(ctx, `
UPDATE subscriptions SET tier = $1, subscription_id = NULL, start_date = $2, end_date = $3,
  allowed_cvs = $4, has_analytics = $5 WHERE user_id = $6`,
			sub.Tier, sub.Start, sub.End, sub.AllowedCVs, sub.HasAnalytics, userID); err != nil {
			return Subscription{}, err
		}
	}
	return sub, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
