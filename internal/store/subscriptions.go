package store

import (
	"context"
	"database/sql"

	"farmbox-service/internal/models"
)

// GetSubscriptionByUserID retrieves the subscription row for a user.
// Returns nil without error when the user has no row yet.
func (s *Store) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub,
		"SELECT * FROM subscriptions WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription writes the subscription row for a user, creating it
// when missing. At most one row per user is the invariant; the unique
// constraint on user_id enforces it.
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, status, stripe_customer_id, stripe_subscription_id, cancelled_at, cancellation_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			cancelled_at = EXCLUDED.cancelled_at,
			cancellation_reason = EXCLUDED.cancellation_reason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, sub, query,
		sub.UserID, sub.Status, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.CancelledAt, sub.CancellationReason)
}
